package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

// CandidateList is the exported shape of one discovery pass
type CandidateList struct {
	LastUpdate string            `json:"last_update"`
	IPv4       []types.Candidate `json:"ipv4"`
}

// ExportList writes the collected candidates to jsonPath and a
// human-readable listing to textPath, before probing starts, so the raw
// discovery output survives independent of scan results.
func ExportList(candidates []types.Candidate, jsonPath, textPath string) error {
	list := CandidateList{
		LastUpdate: time.Now().Format(time.RFC3339),
		IPv4:       candidates,
	}

	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return fmt.Errorf("could not marshal candidate list: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("could not write %s: %w", jsonPath, err)
	}

	file, err := os.OpenFile(textPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("could not write %s: %w", textPath, err)
	}
	defer file.Close()

	fmt.Fprintf(file, "Last Update: %s\n\nIPv4:\n", list.LastUpdate)
	for _, candidate := range candidates {
		fmt.Fprintf(file, "  - %-15s    %-10s    %s\n", candidate.Address, candidate.SourceLabel, candidate.Provider)
	}
	return nil
}
