package errclass

// UserMessage is the end-user-facing rendering of a failure category. It
// deliberately avoids technical wording; raw provider errors never reach
// the user directly.
type UserMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

var userMessages = map[Category]UserMessage{
	CategoryTransient: {
		Title:   "Temporary problem",
		Message: "Something went wrong for a moment while creating your images.",
		Action:  "We will retry this automatically. No action is needed.",
	},
	CategoryRateLimited: {
		Title:   "Service is busy",
		Message: "The image service is handling a lot of requests right now.",
		Action:  "Your order will be retried automatically in a little while.",
	},
	CategoryAuthentication: {
		Title:   "Account problem",
		Message: "We could not access the image service with the configured account.",
		Action:  "Please contact support so we can fix the account settings.",
	},
	CategoryValidation: {
		Title:   "Request could not be processed",
		Message: "Part of your request was not accepted by the image service.",
		Action:  "Please adjust your prompt or settings and try again.",
	},
	CategoryContentPolicy: {
		Title:   "Content not allowed",
		Message: "Your prompt was declined by the image service's content rules.",
		Action:  "Please rephrase your prompt and try again.",
	},
	CategoryProviderOutage: {
		Title:   "Service interruption",
		Message: "The image service is temporarily unavailable.",
		Action:  "We will retry your order automatically once it is back.",
	},
	CategoryNetwork: {
		Title:   "Connection problem",
		Message: "We had trouble reaching the image service.",
		Action:  "We will retry this automatically. No action is needed.",
	},
	CategoryFileSystem: {
		Title:   "Storage problem",
		Message: "We had trouble saving your images.",
		Action:  "We will retry this automatically. No action is needed.",
	},
	CategoryUnknown: {
		Title:   "Something went wrong",
		Message: "Your order could not be completed.",
		Action:  "Please try again, or contact support if this keeps happening.",
	},
}

// ForUser returns the friendly message tuple for a category. Unmapped
// categories fall back to the UNKNOWN tuple.
func ForUser(c Category) UserMessage {
	if m, ok := userMessages[c]; ok {
		return m
	}
	return userMessages[CategoryUnknown]
}

// ForUserWithDetail appends a short technical detail to the message for
// surfaces that want it (admin views, logs shown to staff).
func ForUserWithDetail(c Category, detail string) UserMessage {
	m := ForUser(c)
	if detail != "" {
		m.Message = m.Message + " (" + detail + ")"
	}
	return m
}
