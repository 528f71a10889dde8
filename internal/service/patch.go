package service

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
)

// Patch is a JSON merge patch (RFC 7396) over a flat record. A null value
// clears the field.
type Patch map[string]json.RawMessage

var (
	absenceImmutableFields = map[string]struct{}{"id": {}, "student_id": {}, "process_id": {}, "action_type": {}}
	absenceServerFields    = map[string]struct{}{"created_at": {}, "updated_at": {}, "created_by": {}}
	absencePatchableFields = jsonFieldSet(reflect.TypeOf(models.AbsenceAction{}))
)

func jsonFieldSet(t reflect.Type) map[string]struct{} {
	out := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		if name != "" && name != "-" {
			out[name] = struct{}{}
		}
	}
	return out
}

// mergeAbsencePatch overlays patch on current. Server-owned timestamps in the
// patch are ignored; identity fields may be echoed but not changed.
func mergeAbsencePatch(current models.AbsenceAction, patch Patch) (models.AbsenceAction, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return current, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode absence action")
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return current, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode absence action")
	}

	var unknown, immutable []string
	for key, value := range patch {
		if _, ok := absencePatchableFields[key]; !ok {
			unknown = append(unknown, key)
			continue
		}
		if _, ok := absenceServerFields[key]; ok {
			continue
		}
		if _, ok := absenceImmutableFields[key]; ok {
			if !sameJSON(doc[key], value) {
				immutable = append(immutable, key)
			}
			continue
		}
		if isJSONNull(value) {
			delete(doc, key)
			continue
		}
		doc[key] = value
	}
	if len(unknown) > 0 || len(immutable) > 0 {
		sort.Strings(unknown)
		sort.Strings(immutable)
		fields := make(map[string]string, len(unknown)+len(immutable))
		for _, k := range unknown {
			fields[k] = "unknown"
		}
		for _, k := range immutable {
			fields[k] = "immutable"
		}
		return current, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "patch touches fields that cannot be changed"),
			map[string]interface{}{"fields": fields})
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return current, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patch")
	}
	var out models.AbsenceAction
	if err := json.Unmarshal(merged, &out); err != nil {
		return current, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patch")
	}
	out.CreatedAt = current.CreatedAt
	out.UpdatedAt = current.UpdatedAt
	out.CreatedBy = current.CreatedBy
	return out, nil
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func sameJSON(a, b json.RawMessage) bool {
	var left, right interface{}
	if len(a) == 0 {
		a = json.RawMessage("null")
	}
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}
