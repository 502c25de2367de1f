// Package session runs one candidate's personality-test attempt: question
// loading, navigation, integrity guard, countdown and score submission.
package session

// Stage is the position of a session in the test flow.
//
//	questionnaire -> image_analysis -> completed
//	questionnaire -> completed              (image stage disabled)
//	any non-terminal -> timed_out           (countdown reached zero)
//	any non-terminal -> terminated          (violation limit reached)
type Stage string

const (
	StageQuestionnaire Stage = "questionnaire"
	StageImageAnalysis Stage = "image_analysis"
	StageCompleted     Stage = "completed"
	StageTimedOut      Stage = "timed_out"
	StageTerminated    Stage = "terminated"
)

// Terminal stages accept no further input.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageTimedOut, StageTerminated:
		return true
	}
	return false
}

// LoadState tracks the question fetch.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadError   LoadState = "error"
)
