// internal/index/index.go

// Package index maintains the variant index: one (or a few) aggregate
// documents whose body lists every variant as a tab-separated row, so
// clients can fetch the whole catalog in a single read.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/store"
)

// Collection holds the index shards. A single shard ("0") is enough today;
// Remove and Add already scan every shard so adding more later is cheap.
const Collection = "variantIndex"

// MaxDescriptionLength is how many characters of the description each row
// keeps.
const MaxDescriptionLength = 100

// Doc is one index shard. Each line of Index is
// "<variantId>\t<name>\t<truncated description>"; lines are joined with a
// single newline and there is no trailing empty line. Splitting on newline
// and then on tab recovers exactly the fields written.
type Doc struct {
	Index string `json:"index"`
}

// Row renders one index line.
func Row(id, name, description string) string {
	desc := sanitize(description)
	if len([]rune(desc)) > MaxDescriptionLength {
		desc = string([]rune(desc)[:MaxDescriptionLength])
	}
	return id + "\t" + sanitize(name) + "\t" + desc
}

// sanitize strips the characters that would corrupt the row format.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// Add inserts a row for the variant, replacing any existing row with the
// same id so repeated delivery of the same creation event converges. New
// rows go to shard "0"; replacement happens wherever the row lives.
func Add(ctx context.Context, st store.Store, id, name, description string) error {
	row := Row(id, name, description)

	shards, err := st.List(ctx, Collection)
	if err != nil {
		return fmt.Errorf("failed to list index shards: %w", err)
	}

	// Replace in place if some shard already has this id.
	for _, shard := range shards {
		doc, err := decode(shard)
		if err != nil {
			return err
		}
		rows := strings.Split(doc.Index, "\n")
		replaced := false
		for i, r := range rows {
			if strings.HasPrefix(r, id+"\t") {
				rows[i] = row
				replaced = true
			}
		}
		if !replaced {
			continue
		}
		updated := strings.Join(rows, "\n")
		if updated == doc.Index {
			return nil
		}
		return st.Update(ctx, shard.Ref, map[string]any{"index": updated})
	}

	// Append to the first shard, creating it if the collection is empty.
	if len(shards) == 0 {
		ref := store.Ref{Collection: Collection, ID: "0"}
		return st.Set(ctx, ref, Doc{Index: row})
	}
	first := shards[0]
	doc, err := decode(first)
	if err != nil {
		return err
	}
	updated := row
	if doc.Index != "" {
		updated = doc.Index + "\n" + row
	}
	return st.Update(ctx, first.Ref, map[string]any{"index": updated})
}

// Remove strips the variant's row from whichever shard holds it, rewriting
// a shard only when its body actually changes. A missing row is an index
// inconsistency: it is logged but not treated as fatal, since the desired
// end state (row absent) already holds.
func Remove(ctx context.Context, st store.Store, logger *logrus.Logger, id string) error {
	shards, err := st.List(ctx, Collection)
	if err != nil {
		return fmt.Errorf("failed to list index shards: %w", err)
	}

	found := false
	for _, shard := range shards {
		doc, err := decode(shard)
		if err != nil {
			return err
		}
		rows := strings.Split(doc.Index, "\n")
		kept := rows[:0]
		for _, r := range rows {
			if !strings.HasPrefix(r, id+"\t") {
				kept = append(kept, r)
			}
		}
		updated := strings.Join(kept, "\n")
		if updated == doc.Index {
			continue
		}
		if err := st.Update(ctx, shard.Ref, map[string]any{"index": updated}); err != nil {
			return fmt.Errorf("failed to rewrite index shard %s: %w", shard.Ref.ID, err)
		}
		found = true
	}

	if !found {
		logger.WithField("variant_id", id).Error("could not find index entry")
	}
	return nil
}

func decode(snap store.Snapshot) (*Doc, error) {
	var doc Doc
	if err := json.Unmarshal(snap.Data, &doc); err != nil {
		return nil, fmt.Errorf("malformed index shard %s: %w", snap.Ref.Path(), err)
	}
	return &doc, nil
}
