// Package intent turns what a user said into concrete device changes.
//
// A StructuredIntent is the interpretation of one utterance: a closed Kind,
// optional target devices or scene, a free-form value and the model's
// reasoning. Parse reads it defensively from language-backend output,
// Matcher derives one from the raw text with keyword rules when the backend
// output is unusable, and Resolver expands it into an ordered ActionSet
// against the device and scene registries.
//
// Resolution never mutates state. The same intent against the same
// registries always yields the same ActionSet, in device registration order.
package intent
