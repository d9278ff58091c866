// Package follow reads telemetry items from a JSONL results file, either in
// one shot (ReadFile) or by tailing the file for appended lines (Follower).
// It lets an evaluation process with no Go integration report through
// evalrelay: the process writes one JSON item per line, the follower ships
// each complete line as it appears.
//
// Lines are only consumed once terminated by a newline, so a writer caught
// mid-append never produces a truncated item. Malformed lines are logged and
// skipped; they never stop the follower.
package follow
