// Package deploy turns a successful workflow_run notification into a site
// deployment.
//
// Sites are matched in configured order and the first site whose repository,
// branch, workflow and actor filter agree with the run wins. The deploy
// command is built from individually shell-escaped tokens and handed to a
// Launcher:
//   - BackgroundLauncher starts it detached in its own process group and
//     appends output to a log file (default)
//   - AtLauncher queues it with `at now`
//   - SyncLauncher waits for it and captures stdout
//
// A non-zero exit code is reported as the response code, not as an error.
package deploy
