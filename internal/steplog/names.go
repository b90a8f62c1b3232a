package steplog

// Step names shared by the pipeline and the exit-code table.
const (
	StepNode         = "Node.js"
	StepNPM          = "npm"
	StepGit          = "git"
	StepEditorCLI    = "VS Code CLI"
	StepGitHubCLI    = "GitHub CLI"
	StepMarketplace  = "Marketplace PAT"
	StepGlobalNPM    = "Global npm pkgs"
	StepExtensions   = "VS Code extensions"
	StepWorkingTree  = "Working tree"
	StepRemoteSync   = "Remote sync"
	StepDependencies = "node_modules"
	StepCompile      = "Compile"
	StepTests        = "Tests"
	StepLineLimits   = "File line limits"
	StepManifest     = "Manifest version"
	StepChangelog    = "Changelog marker"
	StepVersionTag   = "Version tag"
	StepPackage      = "Package"
	StepConfirm      = "Confirm publish"
	StepFinalize     = "Finalize changelog"
	StepCommitPush   = "Commit & push"
	StepTag          = "Tag"
	StepUpload       = "Marketplace publish"
	StepRelease      = "GitHub release"
)
