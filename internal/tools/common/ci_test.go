package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestWriteCIResult(t *testing.T) {
	var buf bytes.Buffer
	WriteCIResult(&buf, false, "portal simulate", []string{"login page: ok"}, errors.New("auth failed"))

	var got CIResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode ci result %q: %v", buf.String(), err)
	}
	if got.Name != "portal simulate" || got.OK || got.Error != "auth failed" || len(got.Details) != 1 {
		t.Fatalf("unexpected ci result %+v", got)
	}
}
