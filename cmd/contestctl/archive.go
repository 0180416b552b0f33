package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Dosada05/contest-system/services"
	"github.com/Dosada05/contest-system/storage"
)

// archiveContest re-uploads the bracket of a finished contest, or removes the
// archived copy when remove is set.
func archiveContest(ctx context.Context, cs services.ContestService, archive storage.FileUploader, id int, remove bool, w io.Writer) error {
	key := storage.BracketKey(id)
	if remove {
		if err := archive.Delete(ctx, key); err != nil {
			return err
		}
		fmt.Fprintf(w, "removed %s\n", key)
		return nil
	}

	contest, err := cs.GetContest(ctx, id)
	if err != nil {
		return err
	}
	if !contest.Finished() {
		return fmt.Errorf("contest %d is %s, only finished contests are archived", id, contest.State)
	}

	data, err := json.Marshal(services.NewBracketView(contest))
	if err != nil {
		return fmt.Errorf("failed to encode bracket of contest %d: %w", id, err)
	}
	res, err := archive.Upload(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	location := res.Location
	if location == "" {
		location = res.Key
	}
	fmt.Fprintf(w, "archived %s\n", location)
	return nil
}
