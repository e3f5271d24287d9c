package services

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// BinaryStatus reports the availability of a requirement.
type BinaryStatus struct {
	Requirement
	Available bool
	Detail    string
}

// CheckBinaries resolves every requirement on PATH.
func CheckBinaries(requirements []Requirement) []BinaryStatus {
	results := make([]BinaryStatus, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := BinaryStatus{Requirement: req}
		switch {
		case req.Command == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(req.Command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns an error naming every unavailable non-optional binary.
func MissingRequired(statuses []BinaryStatus) error {
	var missing []string
	for _, st := range statuses {
		if !st.Available && !st.Optional {
			missing = append(missing, fmt.Sprintf("%s (%s)", st.Name, st.Detail))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("required tools missing: %s", strings.Join(missing, ", "))
}

// MediaRequirements lists the binaries a generation run uses.
func MediaRequirements(ffmpeg, ffprobe, edgeTTS string) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "mixing and compositing"},
		{Name: "FFprobe", Command: ffprobe, Description: "measuring narration duration"},
		{Name: "edge-tts", Command: edgeTTS, Description: "fallback speech synthesis", Optional: true},
	}
}
