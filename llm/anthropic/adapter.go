package anthropic

import (
	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/samber/lo"
)

// MapConversation converts every non-system message into a Messages API
// turn, preserving order. requestMeta carries request level options such as
// the citation override.
func MapConversation(messages []llm.Message, requestMeta llm.ProviderMeta) ([]Message, error) {
	conversation := llm.ConversationMessages(messages)
	mapped := make([]Message, 0, len(conversation))
	for _, msg := range conversation {
		m, err := mapMessage(msg, requestMeta)
		if err != nil {
			return nil, err
		}
		mapped = append(mapped, m)
	}
	return mapped, nil
}

// MapSystemPrompts returns the system blocks for messages: the override
// first when present, then every system message in order.
func MapSystemPrompts(messages []llm.Message, override *string) []ContentBlock {
	blocks := lo.FilterMap(messages, func(msg llm.Message, _ int) (ContentBlock, bool) {
		sm, ok := msg.(*llm.SystemMessage)
		if !ok {
			return ContentBlock{}, false
		}
		return mapSystemMessage(sm), true
	})
	if override != nil {
		blocks = append([]ContentBlock{mapSystemMessage(llm.NewSystemMessage(*override))}, blocks...)
	}
	return blocks
}

func mapMessage(msg llm.Message, requestMeta llm.ProviderMeta) (Message, error) {
	switch m := msg.(type) {
	case *llm.UserMessage:
		return mapUserMessage(m, requestMeta)
	case *llm.AssistantMessage:
		return mapAssistantMessage(m), nil
	case *llm.ToolResultMessage:
		return mapToolResultMessage(m), nil
	}
	return Message{}, llm.NewUnsupportedMessageError(msg)
}

func mapSystemMessage(msg *llm.SystemMessage) ContentBlock {
	return ContentBlock{
		Type:         "text",
		Text:         msg.Content,
		CacheControl: cacheControl(msg.ProviderMeta),
	}
}

func mapUserMessage(msg *llm.UserMessage, requestMeta llm.ProviderMeta) (Message, error) {
	cc := cacheControl(msg.ProviderMeta)
	content := make([]ContentBlock, 0, 1+len(msg.Images)+len(msg.Documents))
	content = append(content, ContentBlock{Type: "text", Text: msg.Content, CacheControl: cc})

	for _, img := range msg.Images {
		block, err := mapImage(img, cc)
		if err != nil {
			return Message{}, err
		}
		content = append(content, block)
	}
	for _, doc := range msg.Documents {
		block, err := mapDocument(doc, cc, requestMeta)
		if err != nil {
			return Message{}, err
		}
		content = append(content, block)
	}

	return Message{Role: "user", Content: content}, nil
}

func mapAssistantMessage(msg *llm.AssistantMessage) Message {
	cc := cacheControl(msg.ProviderMeta)
	content := make([]ContentBlock, 0, 1+len(msg.ToolCalls))

	if len(msg.Parts) > 0 {
		for _, part := range msg.Parts {
			block := ContentBlock{Type: "text", Text: part.Text, CacheControl: cc}
			if len(part.Citations) > 0 {
				block.Citations = lo.Map(part.Citations, func(c llm.Citation, _ int) Citation {
					return toWireCitation(c)
				})
			}
			content = append(content, block)
		}
	} else if msg.Content != "" {
		content = append(content, ContentBlock{Type: "text", Text: msg.Content, CacheControl: cc})
	}

	for _, tc := range msg.ToolCalls {
		input := tc.Arguments
		if input == nil {
			input = map[string]any{}
		}
		content = append(content, ContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: input,
		})
	}

	return Message{Role: "assistant", Content: content}
}

func mapToolResultMessage(msg *llm.ToolResultMessage) Message {
	return Message{
		Role: "user",
		Content: lo.Map(msg.Results, func(r llm.ToolResult, _ int) ContentBlock {
			return ContentBlock{
				Type:      "tool_result",
				ToolUseID: r.ToolCallID,
				Content:   r.Result,
			}
		}),
	}
}

func mapImage(img llm.Image, cc *CacheControl) (ContentBlock, error) {
	if img.IsURL() {
		return ContentBlock{}, llm.NewConfigurationError("URL image type is not supported by Anthropic")
	}
	return ContentBlock{
		Type: "image",
		Source: &Source{
			Type:      "base64",
			MediaType: img.MimeType,
			Data:      img.Data,
		},
		CacheControl: cc,
	}, nil
}

// mapDocument uses the document's own cache hint when set, otherwise the
// message's.
func mapDocument(doc llm.Document, messageCache *CacheControl, requestMeta llm.ProviderMeta) (ContentBlock, error) {
	if err := doc.Validate(); err != nil {
		return ContentBlock{}, err
	}

	source := &Source{Type: string(doc.Format), MediaType: doc.MimeType}
	if doc.IsChunked() {
		source.Content = lo.Map(doc.Chunks, func(chunk string, _ int) ContentBlock {
			return ContentBlock{Type: "text", Text: chunk}
		})
	} else {
		source.Data = doc.Data
	}

	cc := cacheControl(doc.ProviderMeta)
	if cc == nil {
		cc = messageCache
	}

	block := ContentBlock{
		Type:         "document",
		Source:       source,
		Title:        doc.Title,
		Context:      doc.Context,
		CacheControl: cc,
	}
	if citationsEnabled(doc, requestMeta) {
		block.Citations = &CitationsConfig{Enabled: true}
	}
	return block, nil
}

// citationsEnabled resolves the citation flag: the request override wins,
// then the document's own setting, otherwise citations are off.
func citationsEnabled(doc llm.Document, requestMeta llm.ProviderMeta) bool {
	if enabled := requestMeta.AnthropicOptions().Citations; enabled != nil {
		return *enabled
	}
	if enabled := doc.AnthropicOptions().Citations; enabled != nil {
		return *enabled
	}
	return false
}

func cacheControl(meta llm.ProviderMeta) *CacheControl {
	cacheType := meta.AnthropicOptions().CacheType
	if cacheType == "" {
		return nil
	}
	return &CacheControl{Type: string(cacheType)}
}

func toWireCitation(c llm.Citation) Citation {
	w := Citation{
		Type:          c.Type,
		CitedText:     c.CitedText,
		DocumentIndex: c.DocumentIndex,
		DocumentTitle: c.DocumentTitle,
	}
	start, end := c.Start, c.End
	switch c.Type {
	case "char_location":
		w.StartCharIndex, w.EndCharIndex = &start, &end
	case "page_location":
		w.StartPageNumber, w.EndPageNumber = &start, &end
	case "content_block_location":
		w.StartBlockIndex, w.EndBlockIndex = &start, &end
	}
	return w
}

func fromWireCitation(w Citation) llm.Citation {
	c := llm.Citation{
		Type:          w.Type,
		CitedText:     w.CitedText,
		DocumentIndex: w.DocumentIndex,
		DocumentTitle: w.DocumentTitle,
	}
	for _, pair := range [][2]*int{
		{w.StartCharIndex, w.EndCharIndex},
		{w.StartPageNumber, w.EndPageNumber},
		{w.StartBlockIndex, w.EndBlockIndex},
	} {
		if pair[0] != nil && pair[1] != nil {
			c.Start, c.End = *pair[0], *pair[1]
			break
		}
	}
	return c
}
