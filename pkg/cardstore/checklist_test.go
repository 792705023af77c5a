package cardstore_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

func checklistDescriptions(items []cardstore.ChecklistItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Description)
	}

	return out
}

func Test_Checklist_Nests_Items_Per_Parent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t).store
	ctx := t.Context()

	card := mustCreate(t, s, cardstore.NewCard{Title: "Release"})

	build, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "build", Order: 1})
	require.NoError(t, err)

	_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "plan", Order: 0})
	require.NoError(t, err)

	_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "compile", ParentID: &build.ID})
	require.NoError(t, err)

	_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "link", ParentID: &build.ID})
	require.NoError(t, err)

	top, err := s.ListChecklist(ctx, card.ID, nil)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"plan", "build"}, checklistDescriptions(top)); diff != "" {
		t.Fatalf("top level (-want +got):\n%s", diff)
	}

	sub, err := s.ListChecklist(ctx, card.ID, &build.ID)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"compile", "link"}, checklistDescriptions(sub)); diff != "" {
		t.Fatalf("sub items (-want +got):\n%s", diff)
	}

	if sub[0].Done || sub[0].ParentID == nil || *sub[0].ParentID != build.ID {
		t.Fatalf("sub item=%+v", sub[0])
	}
}

func Test_UpdateChecklistItem_Changes_Given_Fields(t *testing.T) {
	t.Parallel()

	s := openTestStore(t).store
	ctx := t.Context()

	card := mustCreate(t, s, cardstore.NewCard{Title: "Release"})
	parent, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "parent"})
	require.NoError(t, err)

	item, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "item"})
	require.NoError(t, err)

	updated, err := s.UpdateChecklistItem(ctx, item.ID, cardstore.ChecklistUpdate{
		Description: ptr("renamed"),
		Done:        ptr(true),
		Order:       ptr(4),
		Parent:      &cardstore.ParentRef{ID: &parent.ID},
	})
	require.NoError(t, err)

	want := cardstore.ChecklistItem{
		ID:          item.ID,
		CardID:      card.ID,
		ParentID:    &parent.ID,
		Description: "renamed",
		Done:        true,
		Order:       4,
		CreatedAt:   item.CreatedAt,
	}

	if diff := cmp.Diff(want, updated); diff != "" {
		t.Fatalf("item mismatch (-want +got):\n%s", diff)
	}

	_, err = s.UpdateChecklistItem(ctx, item.ID, cardstore.ChecklistUpdate{})
	if !errors.Is(err, cardstore.ErrInvalidArgument) {
		t.Fatalf("empty update err=%v, want ErrInvalidArgument", err)
	}

	_, err = s.UpdateChecklistItem(ctx, 999, cardstore.ChecklistUpdate{Done: ptr(true)})
	if !errors.Is(err, cardstore.ErrNotFound) {
		t.Fatalf("missing item err=%v, want ErrNotFound", err)
	}
}

func Test_Checklist_Rejects_Foreign_And_Cyclic_Parents(t *testing.T) {
	t.Parallel()

	s := openTestStore(t).store
	ctx := t.Context()

	card := mustCreate(t, s, cardstore.NewCard{Title: "A"})
	other := mustCreate(t, s, cardstore.NewCard{Title: "B"})

	foreign, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: other.ID, Description: "foreign"})
	require.NoError(t, err)

	root, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "root"})
	require.NoError(t, err)

	leaf, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "leaf", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "x", ParentID: &foreign.ID})
	if !errors.Is(err, cardstore.ErrInvalidArgument) {
		t.Fatalf("foreign parent err=%v, want ErrInvalidArgument", err)
	}

	_, err = s.UpdateChecklistItem(ctx, root.ID, cardstore.ChecklistUpdate{Parent: &cardstore.ParentRef{ID: &leaf.ID}})
	if !errors.Is(err, cardstore.ErrInvalidArgument) {
		t.Fatalf("cycle err=%v, want ErrInvalidArgument", err)
	}

	_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "x", ParentID: ptr(int64(999))})
	if !errors.Is(err, cardstore.ErrNotFound) {
		t.Fatalf("missing parent err=%v, want ErrNotFound", err)
	}

	_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: " "})
	if !errors.Is(err, cardstore.ErrInvalidArgument) {
		t.Fatalf("empty description err=%v, want ErrInvalidArgument", err)
	}
}

func Test_DeleteChecklistItem_Removes_Sub_Items(t *testing.T) {
	t.Parallel()

	forEachFKMode(t, func(t *testing.T, env *testEnv) {
		s := env.store
		ctx := t.Context()

		card := mustCreate(t, s, cardstore.NewCard{Title: "Release"})

		root, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "root"})
		require.NoError(t, err)

		mid, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "mid", ParentID: &root.ID})
		require.NoError(t, err)

		_, err = s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "leaf", ParentID: &mid.ID})
		require.NoError(t, err)

		keep, err := s.AddChecklistItem(ctx, cardstore.NewChecklistItem{CardID: card.ID, Description: "keep"})
		require.NoError(t, err)

		removed, err := s.DeleteChecklistItem(ctx, root.ID)
		require.NoError(t, err)

		if removed != 3 {
			t.Fatalf("removed=%d, want=3", removed)
		}

		_, err = s.GetChecklistItem(ctx, mid.ID)
		if !errors.Is(err, cardstore.ErrNotFound) {
			t.Fatalf("mid err=%v, want ErrNotFound", err)
		}

		top, err := s.ListChecklist(ctx, card.ID, nil)
		require.NoError(t, err)

		if len(top) != 1 || top[0].ID != keep.ID {
			t.Fatalf("remaining=%+v", top)
		}

		_, err = s.DeleteChecklistItem(ctx, root.ID)
		if !errors.Is(err, cardstore.ErrNotFound) {
			t.Fatalf("second delete err=%v, want ErrNotFound", err)
		}
	})
}
