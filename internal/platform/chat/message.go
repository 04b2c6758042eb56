package chat

// Message is one outbound chat post. Text is always set and is what the
// webhook mode delivers; Blocks carry the rich layout for the bot API.
type Message struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

// Block is a layout block of the chat API.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Fields   []TextObject `json:"fields,omitempty"`
	Elements []Element    `json:"elements,omitempty"`
}

// TextObject is a plain_text or mrkdwn text value.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Element is an interactive or context element inside a block.
type Element struct {
	Type     string      `json:"type"`
	Text     *TextObject `json:"text,omitempty"`
	URL      string      `json:"url,omitempty"`
	Value    string      `json:"value,omitempty"`
	ActionID string      `json:"action_id,omitempty"`
	Style    string      `json:"style,omitempty"`
}

// Header returns a header block with plain text.
func Header(text string) Block {
	return Block{Type: "header", Text: &TextObject{Type: "plain_text", Text: text}}
}

// Section returns a section block with markdown text.
func Section(markdown string) Block {
	return Block{Type: "section", Text: Markdown(markdown)}
}

// Fields returns a section block laying out markdown fields in columns.
func Fields(markdown ...string) Block {
	fields := make([]TextObject, 0, len(markdown))
	for _, m := range markdown {
		fields = append(fields, *Markdown(m))
	}
	return Block{Type: "section", Fields: fields}
}

// Actions returns an actions block holding the given elements.
func Actions(elements ...Element) Block {
	return Block{Type: "actions", Elements: elements}
}

// Markdown returns a mrkdwn text object.
func Markdown(text string) *TextObject {
	return &TextObject{Type: "mrkdwn", Text: text}
}

// LinkButton returns a primary button opening url.
func LinkButton(text, url string) Element {
	return Element{
		Type:  "button",
		Text:  &TextObject{Type: "plain_text", Text: text},
		URL:   url,
		Style: "primary",
	}
}

// ActionButton returns a button that posts value back under actionID.
func ActionButton(text, actionID, value string) Element {
	return Element{
		Type:     "button",
		Text:     &TextObject{Type: "plain_text", Text: text},
		ActionID: actionID,
		Value:    value,
	}
}
