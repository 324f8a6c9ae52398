package blocks

import (
	"slices"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// DefaultItemDuration is the duration in seconds given to newly added items.
const DefaultItemDuration = 10

// Editor is a template editing session. It owns a private copy of the
// template until Template is called; nothing is shared with the caller.
type Editor struct {
	tpl model.Template
}

func NewEditor(t model.Template) *Editor {
	return &Editor{tpl: clone(t)}
}

// Template returns a copy of the edited template.
func (e *Editor) Template() model.Template { return clone(e.tpl) }

func (e *Editor) Blocks() []model.TemplateBlock { return clone(e.tpl).Blocks }

func (e *Editor) Validate() []Violation { return Validate(e.tpl.Blocks) }

// AddBlock appends b and returns its index.
func (e *Editor) AddBlock(b model.TemplateBlock) int {
	b.Contents = slices.Clone(b.Contents)
	e.tpl.Blocks = append(e.tpl.Blocks, b)
	return len(e.tpl.Blocks) - 1
}

func (e *Editor) RemoveBlock(i int) error {
	blocks, err := Remove(e.tpl.Blocks, i)
	if err != nil {
		return err
	}
	e.tpl.Blocks = blocks
	return nil
}

// UpdateBlock replaces the name and time range of block i, keeping its items.
func (e *Editor) UpdateBlock(i int, name, start, end string) error {
	if i < 0 || i >= len(e.tpl.Blocks) {
		return ErrOutOfRange
	}
	b := &e.tpl.Blocks[i]
	b.Name, b.StartTime, b.EndTime = name, start, end
	return nil
}

func (e *Editor) MoveBlock(from, to int) error {
	blocks, err := Move(e.tpl.Blocks, from, to)
	if err != nil {
		return err
	}
	e.tpl.Blocks = blocks
	return nil
}

// AddContent appends contentID to block with DefaultItemDuration.
func (e *Editor) AddContent(block, contentID int) error {
	if block < 0 || block >= len(e.tpl.Blocks) {
		return ErrOutOfRange
	}
	b := &e.tpl.Blocks[block]
	b.Contents = append(b.Contents, model.TemplateBlockContent{ContentID: contentID, Duration: DefaultItemDuration})
	return nil
}

func (e *Editor) SetDuration(block, item, seconds int) error {
	if block < 0 || block >= len(e.tpl.Blocks) {
		return ErrOutOfRange
	}
	items := e.tpl.Blocks[block].Contents
	if item < 0 || item >= len(items) {
		return ErrOutOfRange
	}
	items[item].Duration = seconds
	return nil
}

func (e *Editor) RemoveContent(block, item int) error {
	if block < 0 || block >= len(e.tpl.Blocks) {
		return ErrOutOfRange
	}
	items, err := Remove(e.tpl.Blocks[block].Contents, item)
	if err != nil {
		return err
	}
	e.tpl.Blocks[block].Contents = items
	return nil
}

// MoveContent takes item fromIdx out of fromBlock and inserts it before
// position toIdx of toBlock, where toIdx counts items as they were before
// the move. toIdx equal to the length of toBlock appends.
func (e *Editor) MoveContent(fromBlock, fromIdx, toBlock, toIdx int) error {
	n := len(e.tpl.Blocks)
	if fromBlock < 0 || fromBlock >= n || toBlock < 0 || toBlock >= n {
		return ErrOutOfRange
	}
	src := e.tpl.Blocks[fromBlock].Contents
	if fromIdx < 0 || fromIdx >= len(src) || toIdx < 0 || toIdx > len(e.tpl.Blocks[toBlock].Contents) {
		return ErrOutOfRange
	}

	if fromBlock == toBlock {
		if toIdx > fromIdx {
			toIdx--
		}
		items, err := Move(src, fromIdx, toIdx)
		if err != nil {
			return err
		}
		e.tpl.Blocks[fromBlock].Contents = items
		return nil
	}

	item := src[fromIdx]
	e.tpl.Blocks[fromBlock].Contents = slices.Delete(slices.Clone(src), fromIdx, fromIdx+1)
	dst := slices.Clone(e.tpl.Blocks[toBlock].Contents)
	e.tpl.Blocks[toBlock].Contents = slices.Insert(dst, toIdx, item)
	return nil
}

func clone(t model.Template) model.Template {
	t.Blocks = slices.Clone(t.Blocks)
	for i := range t.Blocks {
		t.Blocks[i].Contents = slices.Clone(t.Blocks[i].Contents)
	}
	return t
}
