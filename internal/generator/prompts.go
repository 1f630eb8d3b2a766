package generator

import (
	"strings"

	"github.com/clintrovert/ourstreet/pkg/types"
)

const (
	moderationSystemPrompt = "You are a content moderation assistant for a civic issue reporting platform."
	tweetSystemPrompt      = "You are a civic engagement social media manager."
)

func buildModerationPrompt(issue *types.Issue) string {
	var sb strings.Builder

	sb.WriteString("Review this civic issue report and determine if it's appropriate to post on social media.\n\n")
	sb.WriteString("ISSUE:\n")
	sb.WriteString("Title: " + issue.Title + "\n")
	sb.WriteString("Description: " + issue.Description + "\n")
	sb.WriteString("Category: " + string(issue.Category) + "\n\n")

	sb.WriteString("MODERATION CRITERIA - Reject if:\n")
	sb.WriteString("1. Contains profanity or offensive language\n")
	sb.WriteString("2. Contains personal attacks or harassment\n")
	sb.WriteString("3. Contains false or misleading information\n")
	sb.WriteString("4. Contains spam or promotional content\n")
	sb.WriteString("5. Contains private/sensitive information (addresses, phone numbers, emails)\n")
	sb.WriteString("6. Is duplicate or spam content\n\n")

	sb.WriteString("Respond with ONLY \"APPROVE\" or \"REJECT\" followed by a brief reason.\n")
	sb.WriteString("Example: \"APPROVE: Valid civic issue report\"\n")
	sb.WriteString("Example: \"REJECT: Contains personal information\"\n")

	return sb.String()
}

func buildTweetPrompt(issue *types.Issue) string {
	priority := issue.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	reported := "unknown"
	if !issue.CreatedAt.IsZero() {
		reported = issue.CreatedAt.Format("Jan 2, 2006")
	}
	hashtag := strings.ReplaceAll(string(issue.Category), "_", "")

	var sb strings.Builder

	sb.WriteString("Create an engaging, informative tweet about this civic issue.\n\n")
	sb.WriteString("ISSUE DETAILS:\n")
	sb.WriteString("- Category: " + string(issue.Category) + "\n")
	sb.WriteString("- Title: " + issue.Title + "\n")
	sb.WriteString("- Description: " + issue.Description + "\n")
	sb.WriteString("- Location: " + issue.Location + "\n")
	sb.WriteString("- Status: " + string(issue.Status) + "\n")
	sb.WriteString("- Priority: " + string(priority) + "\n")
	sb.WriteString("- Date Reported: " + reported + "\n\n")

	sb.WriteString("REQUIREMENTS:\n")
	sb.WriteString("1. Keep it under 280 characters\n")
	sb.WriteString("2. Use appropriate emojis (🚨 for urgent, 🔧 for repairs, 🗑️ for waste, 💡 for lights, etc.)\n")
	sb.WriteString("3. Include the location\n")
	sb.WriteString("4. Make it action-oriented and engaging\n")
	sb.WriteString("5. Add relevant hashtags (#CivicIssue #" + hashtag + " #CommunityAlert)\n")
	sb.WriteString("6. Use urgency-appropriate language based on priority\n")
	sb.WriteString("7. DO NOT include any URLs or links\n")
	sb.WriteString("8. Be factual and professional\n\n")

	sb.WriteString("Generate ONLY the tweet text, nothing else.\n")

	return sb.String()
}
