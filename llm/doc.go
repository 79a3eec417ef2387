// Package llm provides a provider-neutral model for talking to Large Language
// Model APIs.
//
// Callers build one Request (messages, attachments, tools, an optional output
// Schema and generation parameters) and hand it to a provider Client. The
// provider packages translate it to their wire format and translate the
// answer back into a Response.
//
// # Core Concepts
//
//  1. Messages: Message is a closed set of variants (SystemMessage,
//     UserMessage, AssistantMessage, ToolResultMessage). Each embeds
//     ProviderMeta, typed per-provider options such as Anthropic cache hints.
//
//  2. Attachments: Image and Document carry inline or referenced media.
//     Providers reject encodings they cannot represent with a configuration
//     error instead of dropping them.
//
//  3. Schemas: Schema describes structured output and tool parameters.
//     JSONSchema renders the generic form; providers with their own dialect
//     translate it themselves.
//
//  4. Responses: every provider round-trip becomes a Step. A ResponseBuilder
//     accumulates steps and becomes immutable once ToResponse is called.
//     Handler drives round-trips and optional tool execution around it.
//
//  5. Collaborators: Transport, ResponseValidator and ToolExecutor are the
//     narrow interfaces providers depend on for I/O.
//
//  6. Middleware: the Middleware interface allows adding cross-cutting
//     concerns like logging, metrics or usage recording without modifying
//     provider implementations.
//
//  7. Errors: the Error type classifies failures as configuration,
//     unsupported message, provider request (transport) or provider response
//     (validator) errors.
//
// Usage Example
//
//	client := gemini.NewClient(transport, logger)
//
//	req := llm.NewRequest("gemini-2.5-flash",
//	    llm.WithSystemPrompt("Extract the fields."),
//	    llm.WithMessages(llm.NewUserMessage("Ada Lovelace, born 1815")),
//	    llm.WithSchema(personSchema),
//	)
//
//	resp, err := client.Generate(ctx, req)
//	if err != nil {
//	    return err
//	}
//	person, err := resp.Structured()
//
// # Extension Points
//
// To add a provider:
//  1. Map the conversation and system prompts into the provider's wire types
//  2. Implement a RoundTrip that sends the payload, validates and extracts a Step
//  3. Implement Client.Generate by running a Handler per request
package llm
