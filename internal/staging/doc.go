// Package staging maintains the job scratch area under paths.work_dir.
//
// Every job removes its own directory when it finishes. CleanStale catches
// the directories left behind by a crash or kill, and ListDirectories feeds
// the work directory summary in "mediabot status".
package staging
