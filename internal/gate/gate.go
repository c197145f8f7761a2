// Package gate decides whether a pipeline run publishes its artifact.
//
// The decision compares the version declared in the project metadata
// with the tag that triggered the run, as exact strings. There is no
// semantic-version normalization: "1.2.0" and "v1.2.0" do not match.
// An empty tag (a plain branch build) never publishes.
package gate

import "fmt"

// ShouldPublish reports whether the declared version and the trigger
// tag match exactly. It is a pure function: same inputs, same decision.
func ShouldPublish(declaredVersion, triggerTag string) bool {
	return declaredVersion == triggerTag
}

// Decision is the outcome of the gate, with a human-readable reason
// suitable for logs and skip annotations.
type Decision struct {
	Publish bool
	Reason  string
}

// Decide evaluates the gate for the given declared version and trigger
// tag.
func Decide(declaredVersion, triggerTag string) Decision {
	if triggerTag == "" {
		return Decision{
			Publish: false,
			Reason:  "no trigger tag (branch build)",
		}
	}

	if !ShouldPublish(declaredVersion, triggerTag) {
		return Decision{
			Publish: false,
			Reason:  fmt.Sprintf("tag %q does not match declared version %q", triggerTag, declaredVersion),
		}
	}

	return Decision{
		Publish: true,
		Reason:  fmt.Sprintf("tag %q matches declared version", triggerTag),
	}
}
