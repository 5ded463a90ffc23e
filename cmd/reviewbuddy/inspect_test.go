package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestInspectCommand_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "place.html")
	page := `<html><body>
<div data-attrid="title">Cafe Luna</div>
<div data-local-attribute="d3adr"><span>Address:</span><span>123 Main St, Springfield, USA</span></div>
</body></html>`
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", path, "--json", "--log-level", "error"})
	t.Cleanup(func() { inspectJSON = false })
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Found bool `json:"found"`
		Place struct {
			Name string `json:"name"`
			City string `json:"city"`
		} `json:"place"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if !res.Found || res.Place.Name != "Cafe Luna" || res.Place.City != "Springfield" {
		t.Fatalf("inspect: got %+v", res)
	}
}

func TestWatchCommand_RequiresURL(t *testing.T) {
	rootCmd.SetArgs([]string{"watch", "--log-level", "error"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("watch without a url should fail")
	}
}
