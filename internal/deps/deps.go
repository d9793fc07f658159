package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary and why it is needed.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after a PATH lookup.
type Status struct {
	Requirement
	// Path is the resolved executable when Available.
	Path      string
	Available bool
	// Detail explains an unavailable binary.
	Detail string
}

// CheckBinaries resolves each requirement's command on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		statuses[i] = lookup(req)
	}
	return statuses
}

func lookup(req Requirement) Status {
	st := Status{Requirement: req}
	if req.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return st
	}
	st.Path, st.Available = path, true
	return st
}

// MissingRequired joins one error per unavailable required binary, or
// returns nil.
func MissingRequired(statuses []Status) error {
	var errs []error
	for _, st := range statuses {
		if !st.Available && !st.Optional {
			errs = append(errs, fmt.Errorf("%s: %s (%s)", st.Name, st.Detail, st.Description))
		}
	}
	return errors.Join(errs...)
}
