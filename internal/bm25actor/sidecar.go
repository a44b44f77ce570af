package bm25actor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TokenizerVersion identifies the token representation Rebuild's scan and
// Search's query path agree on. A sidecar written under a different version
// is stale evidence only — Load never deserializes documents from it, so a
// mismatch here is a freshness signal, not a format break.
const TokenizerVersion = "v1"

// sidecarFile is the on-disk shape written by Save: a version marker and a
// document count. It is informational only — Load always rebuilds the live
// index from the configured source and uses this file solely to report
// whether the store has drifted since the index was last saved.
type sidecarFile struct {
	Version string `json:"version"`
	Docs    int    `json:"docs"`
}

func writeSidecar(path string, docs int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}
	data, err := json.Marshal(sidecarFile{Version: TokenizerVersion, Docs: docs})
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return os.Rename(tmp, path)
}

// readSidecar returns (sidecarFile{}, false, nil) when the sidecar is absent
// or unparseable. Either way the caller rebuilds; the returned fields are
// used only to log how stale the prior save was.
func readSidecar(path string) (sidecarFile, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sidecarFile{}, false, nil
		}
		return sidecarFile{}, false, fmt.Errorf("read sidecar: %w", err)
	}
	var sf sidecarFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return sidecarFile{}, false, nil
	}
	return sf, true, nil
}
