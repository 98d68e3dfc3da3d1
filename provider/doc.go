// Package provider defines the contract between the session store and a hosted
// (or self-hosted) authentication provider.
//
// # Event stream
//
// Providers push session changes to subscribers through [Listener] callbacks.
// Every provider must deliver [EventInitialSession] synchronously from
// Subscribe, carrying either the active session or nil. [Emitter] implements
// that registry so concrete providers only decide what the current session is.
//
// # Errors
//
// Authentication rejections are reported as *[Error] values carrying a [Code].
// Callers discriminate on the code, never on the message text.
//
// # What this package must NOT do
//
//   - Import storeauth, profile, or any transport package.
//   - Hold session state beyond what [Emitter] needs to fan out events.
package provider
