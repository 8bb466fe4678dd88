package casm

import "fmt"

// Status is the return code of a dispatched command.
type Status int

const (
	StatusOK               Status = 0
	StatusInvalidArg       Status = 1
	StatusUnknown          Status = 2
	StatusNoProject        Status = 3
	StatusInvalidInputFile Status = 4
	StatusMissingInputFile Status = 5
	StatusExistingFile     Status = 6
	StatusMissingDepends   Status = 7
	StatusOtherProject     Status = 8
)

var statusInfo = [...]struct {
	name string
	desc string
}{
	StatusOK:               {"OK", "no error"},
	StatusInvalidArg:       {"ERR_INVALID_ARG", "command line input is not valid"},
	StatusUnknown:          {"ERR_UNKNOWN", "misc. or unknown error"},
	StatusNoProject:        {"ERR_NO_PROJ", "no CASM project can be found in expected location"},
	StatusInvalidInputFile: {"ERR_INVALID_INPUT_FILE", "an expected input file is invalid"},
	StatusMissingInputFile: {"ERR_MISSING_INPUT_FILE", "an expected input file can not be found"},
	StatusExistingFile:     {"ERR_EXISTING_FILE", "a file might be overwritten"},
	StatusMissingDepends:   {"ERR_MISSING_DEPENDS", "a prerequisite step must be done first"},
	StatusOtherProject:     {"ERR_OTHER_PROJ", "attempting to overwrite another CASM project"},
}

// Valid reports whether s is one of the defined codes.
func (s Status) Valid() bool {
	return s >= StatusOK && int(s) < len(statusInfo)
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusInfo[s].name
}

// Description returns a human readable explanation of s.
func (s Status) Description() string {
	if !s.Valid() {
		return "unrecognised status code"
	}
	return statusInfo[s].desc
}
