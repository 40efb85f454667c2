package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type CIResult struct {
	Name    string   `json:"name"`
	OK      bool     `json:"ok"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult writes a single JSON line to stdout for pipelines.
func PrintCIResult(ok bool, name string, details []string, err error) {
	WriteCIResult(os.Stdout, ok, name, details, err)
}

func WriteCIResult(w io.Writer, ok bool, name string, details []string, err error) {
	res := CIResult{Name: name, OK: ok, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	b, marshalErr := json.Marshal(res)
	if marshalErr != nil {
		_, _ = fmt.Fprintf(w, "{\"name\":%q,\"ok\":false,\"error\":%q}\n", name, marshalErr.Error())
		return
	}
	_, _ = fmt.Fprintln(w, string(b))
}
