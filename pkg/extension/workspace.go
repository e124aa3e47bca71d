package extension

// WorkspaceSettings is the per-workspace editor configuration. It is loaded
// by an external store; only the fields the editor consumes are listed.
type WorkspaceSettings struct {
	Marks  []string `json:"marks"`
	Blocks []string `json:"blocks"`
	Embeds []string `json:"embeds"`
}

func (ws *WorkspaceSettings) HasMark(name string) bool { return ws != nil && contains(ws.Marks, name) }
func (ws *WorkspaceSettings) HasBlock(name string) bool {
	return ws != nil && contains(ws.Blocks, name)
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

// CommentBinder connects the comment menu to comment-thread storage.
type CommentBinder interface {
	ActiveThread() string
	SetActiveThread(fragment string)
}

// Provider is the part of a collaboration transport the composer needs.
type Provider interface {
	DocumentName() string
}

// Capabilities are the host-level switches that shape the extension set.
type Capabilities struct {
	Editable       bool
	HostExtensions bool
	CommentData    CommentBinder
	Extra          []*Extension
}

// Input is everything Compose depends on.
type Input struct {
	Capabilities Capabilities
	Workspace    *WorkspaceSettings
	Installed    []Record
	Provider     Provider
}
