package rules

// swiftFiles restricts a rule to Swift sources when a path hint is given.
var swiftFiles = []string{".swift"}

// staticCatalog is the hand-authored rule set. Order is significant:
// detection reports static matches in exactly this order.
var staticCatalog = []ViolationRule{
	{
		ID:            "hb-fatal-error",
		Severity:      SeverityCritical,
		Pattern:       "fatalError(",
		PatternKind:   PatternLiteral,
		Description:   "fatalError crashes the whole server process, taking every in-flight request down with it.",
		FixSuggestion: "Throw an HTTPError (or a type conforming to HTTPResponseError) so the router turns it into a response.",
		CorrectionID:  "error-handling",
	},
	{
		ID:            "hb-blocking-sleep",
		Severity:      SeverityCritical,
		Pattern:       `Thread\.sleep|(?:^|[^.\w])u?sleep\(`,
		PatternKind:   PatternRegex,
		Description:   "Blocking sleep inside server code stalls a cooperative thread and every request scheduled on it.",
		FixSuggestion: "Use `try await Task.sleep(for: .seconds(n))` instead of blocking the thread.",
		CorrectionID:  "async-handlers",
	},
	{
		ID:            "hb-hardcoded-secret",
		Severity:      SeverityCritical,
		Pattern:       `(?i)\b(password|secret|api[_-]?key|access[_-]?token)\s*[:=]\s*"[^"]{6,}"`,
		PatternKind:   PatternRegex,
		Description:   "A credential appears to be hard-coded in source.",
		FixSuggestion: "Load secrets from the environment or a secret store (e.g. via swift-configuration) at startup.",
		CorrectionID:  "configuration",
	},
	{
		ID:            "hb-v1-prefixed-types",
		Severity:      SeverityError,
		Pattern:       `\bHB(Application|Request|Response|Router|RouterBuilder|Middleware|HTTPError|RequestContext)\b`,
		PatternKind:   PatternRegex,
		Description:   "Hummingbird 1.x HB-prefixed types were removed in Hummingbird 2.",
		FixSuggestion: "Drop the HB prefix and migrate to the 2.x API (Application, Request, Response, Router, HTTPError).",
		CorrectionID:  "application-setup",
	},
	{
		ID:            "hb-request-application",
		Severity:      SeverityError,
		Pattern:       `\b(request|req)\.application\b`,
		PatternKind:   PatternRegex,
		Description:   "Reaching the application through the request is a Hummingbird 1.x pattern; requests no longer carry it.",
		FixSuggestion: "Inject dependencies into your controller or service struct and capture them when building routes.",
		CorrectionID:  "dependency-injection",
	},
	{
		ID:            "hb-future-wait",
		Severity:      SeverityError,
		Pattern:       ".wait()",
		PatternKind:   PatternLiteral,
		Description:   "Calling wait() blocks the current thread until a future completes and can deadlock the event loop.",
		FixSuggestion: "Use `try await future.get()` from an async context.",
		CorrectionID:  "async-handlers",
	},
	{
		ID:            "hb-dispatch-semaphore",
		Severity:      SeverityError,
		Pattern:       "DispatchSemaphore",
		PatternKind:   PatternLiteral,
		Description:   "Semaphores block cooperative threads and break Swift concurrency's forward-progress guarantee.",
		FixSuggestion: "Model the wait with async/await, an actor, or an AsyncStream instead of a semaphore.",
		CorrectionID:  "async-handlers",
	},
	{
		ID:            "hb-main-queue-sync",
		Severity:      SeverityError,
		Pattern:       "DispatchQueue.main.sync",
		PatternKind:   PatternLiteral,
		Description:   "Synchronously hopping to the main queue from a server handler blocks and may deadlock.",
		FixSuggestion: "Keep handler code on the cooperative pool; use actors for isolation instead of the main queue.",
		CorrectionID:  "async-handlers",
	},
	{
		ID:            "hb-force-try",
		Severity:      SeverityError,
		Pattern:       "try!",
		PatternKind:   PatternLiteral,
		Description:   "try! turns any thrown error into a crash of the server process.",
		FixSuggestion: "Use `try` and let the error propagate to the router, or handle it with do/catch.",
		CorrectionID:  "error-handling",
	},
	{
		ID:            "hb-event-loop-future",
		Severity:      SeverityWarning,
		Pattern:       "EventLoopFuture",
		PatternKind:   PatternLiteral,
		Description:   "EventLoopFuture-based handlers are legacy; Hummingbird 2 is built on async/await.",
		FixSuggestion: "Rewrite the handler as an `async throws` function and await results directly.",
		CorrectionID:  "async-handlers",
	},
	{
		ID:            "hb-event-loop-access",
		Severity:      SeverityWarning,
		Pattern:       `\.eventLoop\b`,
		PatternKind:   PatternRegex,
		Description:   "Handlers should not depend on a specific event loop in Hummingbird 2.",
		FixSuggestion: "Remove the event loop dependency; use structured concurrency for scheduling work.",
		CorrectionID:  "async-handlers",
	},
	{
		ID:            "hb-print-logging",
		Severity:      SeverityWarning,
		Pattern:       `(?m)^\s*print\(`,
		PatternKind:   PatternRegex,
		Description:   "print() bypasses structured logging and request correlation.",
		FixSuggestion: "Log through `context.logger` (or an injected Logger) so entries carry the request id.",
		CorrectionID:  "request-context",
	},
	{
		ID:            "hb-static-mutable-state",
		Severity:      SeverityWarning,
		Pattern:       `\bstatic\s+var\s`,
		PatternKind:   PatternRegex,
		Description:   "Static mutable state is shared across concurrent requests without isolation.",
		FixSuggestion: "Move the state into an actor or a service owned by the application and inject it.",
		CorrectionID:  "dependency-injection",
	},
	{
		ID:            "hb-unchecked-sendable",
		Severity:      SeverityWarning,
		Pattern:       "@unchecked Sendable",
		PatternKind:   PatternLiteral,
		Description:   "@unchecked Sendable silences data-race checking rather than fixing the race.",
		FixSuggestion: "Make the type a value type, an actor, or protect its state with a Mutex before claiming Sendable.",
		CorrectionID:  "request-context",
	},
}

// StaticCatalog returns a copy of the hand-authored rules in authored order.
func StaticCatalog() []ViolationRule {
	out := make([]ViolationRule, len(staticCatalog))
	for i, r := range staticCatalog {
		r.Origin = OriginStatic
		r.ReviewStatus = StatusApproved
		r.FileTypes = append([]string(nil), swiftFiles...)
		out[i] = r
	}
	return out
}
