package chat

// Role is the upstream generation API's name for a turn author.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is a single text fragment of a Content.
type Part struct {
	Text string `json:"text"`
}

// Content is the wire shape of one turn sent to the generation API.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text joins all parts of the content.
func (c Content) Text() string {
	if len(c.Parts) == 1 {
		return c.Parts[0].Text
	}
	var out string
	for _, p := range c.Parts {
		out += p.Text
	}
	return out
}

// RoleFor maps a transcript sender onto the upstream role.
func RoleFor(sender Sender) Role {
	if sender == SenderUser {
		return RoleUser
	}
	return RoleModel
}

// ContentFrom converts a message into a single-part Content.
func ContentFrom(msg Message) Content {
	return Content{
		Role:  RoleFor(msg.Sender),
		Parts: []Part{{Text: msg.Text}},
	}
}
