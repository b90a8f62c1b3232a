// Package exitcode maps a finished run log to the process exit status.
package exitcode

import (
	"github.com/fyrsmithlabs/releasegate/internal/steplog"
)

// Code is a process exit status. Each failure category has its own code so
// callers (CI, wrappers) can branch on why a release stopped.
type Code int

const (
	Success            Code = 0
	PrerequisiteFailed Code = 1
	WorkingTreeDirty   Code = 2
	RemoteSyncFailed   Code = 3
	DependencyFailed   Code = 4
	CompileFailed      Code = 5
	TestFailed         Code = 6
	QualityFailed      Code = 7
	VersionInvalid     Code = 8
	ChangelogFailed    Code = 9
	PackageFailed      Code = 10
	GitFailed          Code = 11
	PublishFailed      Code = 12
	ReleaseFailed      Code = 13
	UserCancelled      Code = 14

	// Unknown covers an empty run log and failed steps missing from the table.
	Unknown Code = 15
)

var names = map[Code]string{
	Success:            "success",
	PrerequisiteFailed: "prerequisite failed",
	WorkingTreeDirty:   "working tree dirty",
	RemoteSyncFailed:   "remote sync failed",
	DependencyFailed:   "dependency failed",
	CompileFailed:      "compile failed",
	TestFailed:         "test failed",
	QualityFailed:      "quality failed",
	VersionInvalid:     "version invalid",
	ChangelogFailed:    "changelog failed",
	PackageFailed:      "package failed",
	GitFailed:          "git failed",
	PublishFailed:      "publish failed",
	ReleaseFailed:      "release failed",
	UserCancelled:      "user cancelled",
	Unknown:            "unknown failure",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "unknown failure"
}

// Int returns the code for os.Exit.
func (c Code) Int() int { return int(c) }

// table maps step names to failure codes.
var table = map[string]Code{
	steplog.StepNode:         PrerequisiteFailed,
	steplog.StepNPM:          PrerequisiteFailed,
	steplog.StepGit:          PrerequisiteFailed,
	steplog.StepEditorCLI:    PrerequisiteFailed,
	steplog.StepGitHubCLI:    PrerequisiteFailed,
	steplog.StepMarketplace:  PrerequisiteFailed,
	steplog.StepGlobalNPM:    DependencyFailed,
	steplog.StepExtensions:   DependencyFailed,
	steplog.StepWorkingTree:  WorkingTreeDirty,
	steplog.StepRemoteSync:   RemoteSyncFailed,
	steplog.StepDependencies: DependencyFailed,
	steplog.StepCompile:      CompileFailed,
	steplog.StepTests:        TestFailed,
	steplog.StepLineLimits:   QualityFailed,
	steplog.StepManifest:     VersionInvalid,
	steplog.StepChangelog:    ChangelogFailed,
	steplog.StepVersionTag:   VersionInvalid,
	steplog.StepPackage:      PackageFailed,
	steplog.StepConfirm:      UserCancelled,
	steplog.StepFinalize:     ChangelogFailed,
	steplog.StepCommitPush:   GitFailed,
	steplog.StepTag:          GitFailed,
	steplog.StepUpload:       PublishFailed,
	steplog.StepRelease:      ReleaseFailed,
}

// ForStep returns the failure code for a step name.
func ForStep(name string) Code {
	if c, ok := table[name]; ok {
		return c
	}
	return Unknown
}

// Resolve returns the code for the most recent failed entry, Success when
// nothing failed, and Unknown for an empty log.
func Resolve(entries []steplog.Entry) Code {
	if len(entries) == 0 {
		return Unknown
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Failed() {
			return ForStep(entries[i].Name)
		}
	}
	return Success
}
