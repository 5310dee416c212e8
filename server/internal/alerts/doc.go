// Package alerts implements the rule evaluation engine and webhook delivery
// for project alerts. Rules are evaluated against every project of each
// incoming rollup; webhooks are delivered to Teams, Slack or generic HTTP
// targets.
package alerts
