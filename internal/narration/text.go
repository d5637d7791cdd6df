package narration

import "github.com/icemandesignz-code/iceman-citizen-voice/internal/store"

// Narratable blocks of an issue. Block ids are stable per issue so Toggle can
// tell a repeat press from a switch to another block.

func CardBlockID(issueID string) string { return "card:" + issueID }

func DescriptionBlockID(issueID string) string { return "description:" + issueID }

// IssueCardText is what the issue card reads aloud.
func IssueCardText(issue store.Issue) string {
	return issue.Title + ". " + issue.Summary
}

// DescriptionText is what the issue detail view reads aloud.
func DescriptionText(issue store.Issue) string {
	return issue.Description
}
