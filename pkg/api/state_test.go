package api

import "testing"

type transitionCase[S ~string] struct {
	name    string
	from    S
	to      S
	allowed bool
}

func runTransitions[S ~string](t *testing.T, validate func(S, S) error, cases []transitionCase[S]) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate(c.from, c.to)
			if c.allowed && err != nil {
				t.Errorf("%q -> %q rejected: %v", c.from, c.to, err)
			}
			if !c.allowed && err == nil {
				t.Errorf("%q -> %q accepted, want rejection", c.from, c.to)
			}
		})
	}
}

func TestValidateResponseTransition(t *testing.T) {
	runTransitions(t, func(from, to ResponseStatus) error {
		if err := ValidateResponseTransition(from, to); err != nil {
			return err
		}
		return nil
	}, []transitionCase[ResponseStatus]{
		{"start run", "", ResponseStatusInProgress, true},
		{"finish run", ResponseStatusInProgress, ResponseStatusCompleted, true},
		{"fail run", ResponseStatusInProgress, ResponseStatusFailed, true},
		{"cancel run", ResponseStatusInProgress, ResponseStatusCancelled, true},
		{"skip in_progress", "", ResponseStatusCompleted, false},
		{"reopen completed", ResponseStatusCompleted, ResponseStatusInProgress, false},
		{"reopen failed", ResponseStatusFailed, ResponseStatusInProgress, false},
		{"complete cancelled", ResponseStatusCancelled, ResponseStatusCompleted, false},
	})
}

func TestValidateItemTransition(t *testing.T) {
	runTransitions(t, func(from, to ItemStatus) error {
		if err := ValidateItemTransition(from, to); err != nil {
			return err
		}
		return nil
	}, []transitionCase[ItemStatus]{
		{"start item", "", ItemStatusInProgress, true},
		{"complete directly", "", ItemStatusCompleted, true},
		{"complete item", ItemStatusInProgress, ItemStatusCompleted, true},
		{"fail item", ItemStatusInProgress, ItemStatusFailed, true},
		{"reopen completed", ItemStatusCompleted, ItemStatusInProgress, false},
		{"complete failed", ItemStatusFailed, ItemStatusCompleted, false},
	})
}
