// Package dispatch defines the contract between the bridge and the agent
// runtime: an inbound chat message goes in, a streamed reply comes back
// through an emit callback. The bridge treats the handler as an opaque
// collaborator with a deliver/error contract; the reference handlers in the
// anthropic and openai subpackages show the expected streaming shape.
package dispatch
