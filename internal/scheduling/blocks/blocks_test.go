package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func block(name, start, end string, contentIDs ...int) model.TemplateBlock {
	b := model.TemplateBlock{Name: name, StartTime: start, EndTime: end}
	for _, id := range contentIDs {
		b.Contents = append(b.Contents, model.TemplateBlockContent{ContentID: id, Duration: 30})
	}
	return b
}

func kinds(vs []Violation) []Kind {
	out := make([]Kind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Run("overlapping blocks", func(t *testing.T) {
		vs := Validate([]model.TemplateBlock{
			block("morning", "08:00", "09:00", 1),
			block("late morning", "08:30", "09:30", 2),
		})
		require.Len(t, vs, 1)
		assert.Equal(t, KindOverlap, vs[0].Kind)
		assert.Equal(t, 0, vs[0].Block)
		assert.Equal(t, 1, vs[0].Other)
	})

	t.Run("adjacent blocks", func(t *testing.T) {
		vs := Validate([]model.TemplateBlock{
			block("morning", "08:00", "09:00", 1),
			block("late morning", "09:00", "10:00", 2),
		})
		assert.Empty(t, vs)
		assert.NoError(t, Err(vs))
	})

	t.Run("check order", func(t *testing.T) {
		vs := Validate([]model.TemplateBlock{
			block("", "10:00", "09:00", 1),
			block("empty", "07:00", "08:00"),
			block("bad", "7am", "08:00", 1),
		})
		assert.Equal(t, []Kind{KindStartNotBefore, KindInvalidTime, KindEmpty, KindMissingName}, kinds(vs))
		assert.Error(t, Err(vs))
	})

	t.Run("one violation per pair", func(t *testing.T) {
		vs := Validate([]model.TemplateBlock{
			block("a", "08:00", "12:00", 1),
			block("b", "09:00", "10:00", 1),
			block("c", "09:30", "11:00", 1),
		})
		assert.Equal(t, []Kind{KindOverlap, KindOverlap, KindOverlap}, kinds(vs))
	})

	t.Run("non positive duration", func(t *testing.T) {
		b := block("a", "08:00", "09:00", 1)
		b.Contents[0].Duration = 0
		assert.Equal(t, []Kind{KindBadDuration}, kinds(Validate([]model.TemplateBlock{b})))
	})

	t.Run("input untouched", func(t *testing.T) {
		in := []model.TemplateBlock{block("a", "08:00", "09:00", 1, 2)}
		Validate(in)
		assert.Equal(t, []model.TemplateBlock{block("a", "08:00", "09:00", 1, 2)}, in)
	})
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, m)
	for _, bad := range []string{"24:00", "9:30", "09-30", "", "09:60"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrBadClock, bad)
	}
}

func TestMove(t *testing.T) {
	items := []string{"a", "b", "c", "d"}

	got, err := Move(items, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, got)

	got, err = Move(items, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "b", "c"}, got)
	assert.Equal(t, []string{"a", "b", "c", "d"}, items)

	_, err = Move(items, 4, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	got, err = Remove(items, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, got)
}

func contentIDs(b model.TemplateBlock) []int {
	out := make([]int, len(b.Contents))
	for i, c := range b.Contents {
		out[i] = c.ContentID
	}
	return out
}

func TestEditor(t *testing.T) {
	src := model.Template{Name: "weekday", Blocks: []model.TemplateBlock{
		block("morning", "08:00", "09:00", 1, 2, 3),
		block("noon", "12:00", "13:00", 4),
	}}
	ed := NewEditor(src)

	t.Run("move within block drops before target", func(t *testing.T) {
		require.NoError(t, ed.MoveContent(0, 0, 0, 2))
		assert.Equal(t, []int{2, 1, 3}, contentIDs(ed.Blocks()[0]))
	})

	t.Run("move across blocks", func(t *testing.T) {
		require.NoError(t, ed.MoveContent(0, 2, 1, 0))
		blocks := ed.Blocks()
		assert.Equal(t, []int{2, 1}, contentIDs(blocks[0]))
		assert.Equal(t, []int{3, 4}, contentIDs(blocks[1]))
	})

	t.Run("append and remove", func(t *testing.T) {
		require.NoError(t, ed.AddContent(1, 9))
		blocks := ed.Blocks()
		assert.Equal(t, DefaultItemDuration, blocks[1].Contents[2].Duration)
		require.NoError(t, ed.RemoveContent(1, 0))
		assert.Equal(t, []int{4, 9}, contentIDs(ed.Blocks()[1]))
		assert.ErrorIs(t, ed.RemoveContent(5, 0), ErrOutOfRange)
	})

	t.Run("source unchanged", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 3}, contentIDs(src.Blocks[0]))
	})

	t.Run("validate after edits", func(t *testing.T) {
		ed.AddBlock(model.TemplateBlock{Name: "overlap", StartTime: "08:30", EndTime: "08:45"})
		assert.Equal(t, []Kind{KindEmpty, KindOverlap}, kinds(ed.Validate()))
		require.NoError(t, ed.RemoveBlock(2))
		assert.Empty(t, ed.Validate())
	})
}

func TestTotalDurationIgnoresInvalidItems(t *testing.T) {
	b := model.TemplateBlock{Contents: []model.TemplateBlockContent{
		{ContentID: 1, Duration: 60}, {ContentID: 2, Duration: -45}, {ContentID: 3}, {ContentID: 4, Duration: 15},
	}}
	assert.Equal(t, 75, TotalDuration(b))
}
