package main

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/services"
)

// seedContest is one YAML document of a seed file. Members use the kind:id
// form; kind may be omitted when member_kind is set.
type seedContest struct {
	services.CreateContestInput `yaml:",inline"`
	Members                     []string `yaml:"members"`
}

// readSeeds decodes every document of a seed file.
func readSeeds(r io.Reader) ([]services.CreateContestInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []services.CreateContestInput
	for i := 1; ; i++ {
		var doc seedContest
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("seed document %d: %w", i, err)
		}

		input := doc.CreateContestInput
		for _, raw := range doc.Members {
			ref, err := parseMember(raw, input.MemberKind)
			if err != nil {
				return nil, fmt.Errorf("seed document %d (%s): %w", i, input.Title, err)
			}
			input.Members = append(input.Members, *ref)
		}
		out = append(out, input)
	}
	if len(out) == 0 {
		return nil, errors.New("seed file holds no contests")
	}
	return out, nil
}

func parseMember(raw string, kind models.MemberKind) (*models.ParticipantRef, error) {
	ref, err := models.ParseParticipantRef(raw)
	if err == nil {
		return ref, nil
	}
	if kind == "" {
		return nil, err
	}
	return models.ParseParticipantRef(string(kind) + ":" + raw)
}
