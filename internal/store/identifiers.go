package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

// Kind names a record type the identifier lookups operate on. The set is
// closed; it selects among fixed operation documents and is never caller
// input.
type Kind string

const (
	KindAccount   Kind = "account"
	KindScorecard Kind = "scorecard"
	KindScore     Kind = "score"
)

// typeNames maps a kind to the remote type name used in operation documents.
var typeNames = map[Kind]string{
	KindAccount:   "Account",
	KindScorecard: "Scorecard",
	KindScore:     "Score",
}

const getByIDTemplate = `query Get%[1]s($id: ID!) {
  get%[1]s(id: $id) { id }
}`

const findByFieldTemplate = `query List%[1]sBy%[2]s($value: String!) {
  list%[1]sBy%[2]s(%[3]s: $value, limit: 1) {
    items { id }
  }
}`

type identifierStore struct {
	gw gateway.Client
}

func (s *identifierStore) Exists(ctx context.Context, kind Kind, id string) (bool, error) {
	t, ok := typeNames[kind]
	if !ok {
		return false, eris.Errorf("store: unknown identifier kind %q", kind)
	}
	op := gateway.Operation{
		Name:      "Get" + t,
		Document:  fmt.Sprintf(getByIDTemplate, t),
		Variables: map[string]any{"id": id},
	}
	res, err := s.gw.Execute(ctx, op)
	if err != nil {
		return false, eris.Wrap(err, "store: get "+string(kind))
	}
	if err := res.Err(); err != nil {
		return false, err
	}
	var rec struct {
		ID string `json:"id"`
	}
	if err := res.Decode("get"+t, &rec); err != nil {
		// A null record decodes to the zero value; a missing field means miss.
		return false, nil
	}
	return rec.ID != "", nil
}

func (s *identifierStore) FindByKey(ctx context.Context, kind Kind, key string) (string, error) {
	return s.findBy(ctx, kind, "Key", "key", key)
}

func (s *identifierStore) FindByName(ctx context.Context, kind Kind, name string) (string, error) {
	return s.findBy(ctx, kind, "Name", "name", name)
}

func (s *identifierStore) FindByExternalID(ctx context.Context, kind Kind, externalID string) (string, error) {
	return s.findBy(ctx, kind, "ExternalId", "externalId", externalID)
}

func (s *identifierStore) findBy(ctx context.Context, kind Kind, fieldTitle, fieldArg, value string) (string, error) {
	t, ok := typeNames[kind]
	if !ok {
		return "", eris.Errorf("store: unknown identifier kind %q", kind)
	}
	opName := fmt.Sprintf("List%sBy%s", t, fieldTitle)
	op := gateway.Operation{
		Name:      opName,
		Document:  fmt.Sprintf(findByFieldTemplate, t, fieldTitle, fieldArg),
		Variables: map[string]any{"value": value},
	}
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := execute(ctx, s.gw, op, fmt.Sprintf("list%sBy%s", t, fieldTitle), &page); err != nil {
		return "", eris.Wrap(err, "store: "+opName)
	}
	if len(page.Items) == 0 {
		return "", nil
	}
	return page.Items[0].ID, nil
}
