package pbxapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// callTimeLayouts are the timestamp formats accepted for call records
var callTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}

// decodeList decodes either a JSON array or an object keyed by entity id.
// Object entries are returned in key order and setID receives each key.
func decodeList[T any](body []byte, setID func(*T, string)) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var keyed map[string]T
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keyed))
	for id := range keyed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := make([]T, 0, len(keyed))
	for _, id := range ids {
		item := keyed[id]
		setID(&item, id)
		list = append(list, item)
	}
	return list, nil
}

type wireCall struct {
	Time     string        `json:"time"`
	Queue    string        `json:"queue"`
	ToQueue  string        `json:"to_queue"`
	CallerID string        `json:"caller_id"`
	Name     string        `json:"name"`
	Company  string        `json:"company"`
	Outcome  types.Outcome `json:"outcome"`
}

func (w wireCall) record() (types.CallRecord, error) {
	rec := types.CallRecord{
		Queue:    w.Queue,
		ToQueue:  w.ToQueue,
		CallerID: w.CallerID,
		Name:     w.Name,
		Company:  w.Company,
		Outcome:  w.Outcome,
	}
	if w.Time == "" {
		return rec, nil
	}
	for _, layout := range callTimeLayouts {
		if t, err := time.ParseInLocation(layout, w.Time, time.Local); err == nil {
			rec.Time = t
			return rec, nil
		}
	}
	return rec, fmt.Errorf("invalid call time %q", w.Time)
}

type wirePage struct {
	Page    int             `json:"page"`
	Total   *int            `json:"total"`
	Records json.RawMessage `json:"records"`
}

// decodeCallPage accepts a page envelope {page,total,records} or a bare
// array/object of records
func decodeCallPage(body []byte, page int) (types.CallPage, error) {
	result := types.CallPage{Page: page, Size: types.CallPageSize, Records: []types.CallRecord{}}

	trimmed := bytes.TrimSpace(body)
	records := trimmed
	total := -1
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env wirePage
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Records != nil {
			records = env.Records
			if env.Total != nil {
				total = *env.Total
			}
			if env.Page > 0 {
				result.Page = env.Page
			}
		}
	}

	wire, err := decodeList(records, func(*wireCall, string) {})
	if err != nil {
		return types.CallPage{}, err
	}
	for _, w := range wire {
		rec, err := w.record()
		if err != nil {
			return types.CallPage{}, err
		}
		result.Records = append(result.Records, rec)
	}

	result.Total = total
	if total < 0 {
		result.Total = len(result.Records)
	}
	return result, nil
}
