package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MemberKind is the kind of entity a contest is held between.
type MemberKind string

const (
	MemberAnime     MemberKind = "anime"
	MemberManga     MemberKind = "manga"
	MemberCharacter MemberKind = "character"
)

func (k MemberKind) Valid() bool {
	switch k {
	case MemberAnime, MemberManga, MemberCharacter:
		return true
	}
	return false
}

// ParticipantRef points at a contest member: a kind tag plus identity.
type ParticipantRef struct {
	Kind MemberKind `json:"kind"`
	ID   int64      `json:"id"`
}

func NewParticipantRef(kind MemberKind, id int64) *ParticipantRef {
	return &ParticipantRef{Kind: kind, ID: id}
}

// ParseParticipantRef reads the "kind:id" form used in seed files and URLs.
func ParseParticipantRef(s string) (*ParticipantRef, error) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("participant reference %q must look like kind:id", s)
	}
	ref := &ParticipantRef{Kind: MemberKind(kind)}
	if !ref.Kind.Valid() {
		return nil, fmt.Errorf("unknown participant kind %q", kind)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid participant id %q", rawID)
	}
	ref.ID = id
	return ref, nil
}

func (p *ParticipantRef) String() string {
	if p == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}

// Same compares two optional references; two nils are equal.
func (p *ParticipantRef) Same(other *ParticipantRef) bool {
	if p == nil || other == nil {
		return p == nil && other == nil
	}
	return p.Kind == other.Kind && p.ID == other.ID
}
