package extension

import "collab-editor-be/pkg/crdt"

var formattingMarks = []string{"bold", "italic", "strike", "code", "link", "highlight", "superscript", "subscript"}

var formattingBlocks = []string{
	crdt.TypeHeading,
	crdt.TypeBlockquote,
	crdt.TypeBulletList,
	crdt.TypeOrderedList,
	crdt.TypeTaskList,
	crdt.TypeCodeBlock,
	crdt.TypeHorizontalRule,
	crdt.TypeImage,
	crdt.TypeTable,
	crdt.TypeEmbed,
	crdt.TypeElement,
}

// blockChildren lists node types a block brings along with it.
var blockChildren = map[string][]string{
	crdt.TypeBulletList:  {crdt.TypeListItem},
	crdt.TypeOrderedList: {crdt.TypeListItem},
	crdt.TypeTaskList:    {crdt.TypeTaskItem},
	crdt.TypeTable:       {crdt.TypeTableRow, crdt.TypeTableCell, crdt.TypeTableHeader},
}

func always(Input) bool { return true }

// FormattingSegment holds the marks and blocks enabled for the workspace.
var FormattingSegment = Segment{
	Name: "formatting",
	When: always,
	Build: func(in Input) []*Extension {
		var out []*Extension
		for _, m := range formattingMarks {
			if in.Workspace.HasMark(m) {
				out = append(out, NewMark(m))
			}
		}
		for _, b := range formattingBlocks {
			if !in.Workspace.HasBlock(b) {
				continue
			}
			ext := NewNode(b)
			if b == crdt.TypeEmbed && len(in.Workspace.Embeds) > 0 {
				ext = ext.Configure(map[string]any{"providers": append([]string(nil), in.Workspace.Embeds...)})
			}
			out = append(out, ext)
			for _, child := range blockChildren[b] {
				out = append(out, NewNode(child))
			}
		}
		return out
	},
}

// StructureSegment holds the primitives every document needs.
var StructureSegment = Segment{
	Name: "structure",
	When: always,
	Build: func(Input) []*Extension {
		return []*Extension{
			NewNode(crdt.TypeDoc),
			NewNode(crdt.TypeParagraph),
			NewNode(crdt.TypeText),
			NewNode(crdt.TypeHardBreak),
		}
	},
}

var UtilitySegment = Segment{
	Name: "utility",
	When: always,
	Build: func(Input) []*Extension {
		return []*Extension{
			NewBehavior("shortcuts"),
			NewBehavior("typography"),
			NewBehavior("characterCount"),
			NewBehavior("autoDir"),
			NewBehavior("gapcursor"),
			NewBehavior("dropcursor").Configure(map[string]any{"class": "ProseMirror-dropcursor"}),
			NewBehavior("trailingNode"),
			NewBehavior("uniqueId"),
		}
	},
}

// CollaborationSegment is present only when a transport exists.
var CollaborationSegment = Segment{
	Name: "collaboration",
	When: func(in Input) bool { return in.Provider != nil },
	Build: func(in Input) []*Extension {
		return []*Extension{
			NewBehavior("collab").Configure(map[string]any{"document": in.Provider.DocumentName()}),
			NewBehavior("collabCursor").Configure(map[string]any{"provider": in.Provider}),
		}
	},
}

// InteractiveSegment is present only on editable surfaces.
var InteractiveSegment = Segment{
	Name: "interactive",
	When: func(in Input) bool { return in.Capabilities.Editable },
	Build: func(in Input) []*Extension {
		var blockActions *Extension
		if in.Capabilities.HostExtensions {
			names := make([]string, 0, len(in.Installed))
			for _, r := range in.Installed {
				names = append(names, r.Name)
			}
			blockActions = NewBehavior("blockActionMenu").Configure(map[string]any{"extensions": names})
		}
		return []*Extension{
			NewBehavior("blockPaste").Configure(map[string]any{"workspaceSettings": in.Workspace}),
			NewBehavior("placeholder"),
			NewBehavior("draggableText"),
			NewBehavior("slashMenu").Configure(map[string]any{"menuItems": BlockMenuOptions(in.Workspace, nil)}),
			blockActions,
			NewBehavior("tableMenu"),
			NewBehavior("elementMenu"),
			NewBehavior("commentMenu").Configure(map[string]any{"commentData": in.Capabilities.CommentData}),
		}
	},
}

var ExtraSegment = Segment{
	Name: "extra",
	When: func(in Input) bool { return len(in.Capabilities.Extra) > 0 },
	Build: func(in Input) []*Extension {
		return in.Capabilities.Extra
	},
}
