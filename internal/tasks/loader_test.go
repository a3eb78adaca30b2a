package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"proctor/internal/models"
)

const orderStatusJSON = `{
  "tasks": [
    {
      "id": "order_status_001",
      "name": "Check a delivered order",
      "category": "order_status",
      "user_id": "1001",
      "prompt": "Where is my wireless mouse order?",
      "ground_truth": {"order_id": "2001"},
      "response_must_contain": ["delivered"],
      "tool_must_be_called": ["get_order_status"]
    }
  ]
}`

const returnInitJSON = `{
  "tasks": [
    {
      "id": "return_init_001",
      "name": "Start a return",
      "category": "return_init",
      "user_id": "1001",
      "prompt": "I want to return my hub.",
      "ground_truth": {"order_id": 2002},
      "expected_db_state": {"return_status": "Requested"}
    }
  ]
}`

func writeTaskDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "order_status.json"), []byte(orderStatusJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "return_init.json"), []byte(returnInitJSON), 0o600))
	return dir
}

func TestLoadFile(t *testing.T) {
	dir := writeTaskDir(t)

	loaded, err := LoadFile(filepath.Join(dir, "order_status.json"))
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	task := loaded[0]
	require.Equal(t, "order_status_001", task.ID)
	require.Equal(t, models.CategoryOrderStatus, task.Category)
	require.Equal(t, []string{"get_order_status"}, task.ToolMustBeCalled)

	key, err := task.StoreKey()
	require.NoError(t, err)
	require.Equal(t, models.OrderKey{CustomerID: "1001", OrderID: 2001}, key)
}

func TestLoadFileRejectsUnknownCategory(t *testing.T) {
	dir := t.TempDir()
	bad := `{"tasks": [{"id": "x", "name": "x", "category": "refunds", "user_id": "1", "prompt": "p"}]}`
	path := filepath.Join(dir, "refunds.json")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	require.ErrorContains(t, err, "category")
}

func TestLoadFileRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	bad := `{"tasks": [{"id": "x", "category": "order_status"}]}`
	path := filepath.Join(dir, "order_status.json")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order_status.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := writeTaskDir(t)

	t.Run("loads everything in sorted order", func(t *testing.T) {
		all, err := LoadDir(dir, nil)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "order_status_001", all[0].ID)
		require.Equal(t, "return_init_001", all[1].ID)
	})

	t.Run("category filter selects by file stem", func(t *testing.T) {
		filtered, err := LoadDir(dir, []models.Category{models.CategoryReturnInit})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		require.Equal(t, "return_init_001", filtered[0].ID)
	})

	t.Run("unmatched filter loads nothing", func(t *testing.T) {
		filtered, err := LoadDir(dir, []models.Category{models.CategoryProductQA})
		require.NoError(t, err)
		require.Empty(t, filtered)
	})
}

func TestFilter(t *testing.T) {
	dir := writeTaskDir(t)
	all, err := LoadDir(dir, nil)
	require.NoError(t, err)

	t.Run("selects by id in request order", func(t *testing.T) {
		selected, err := Filter(all, []string{"return_init_001", "order_status_001"})
		require.NoError(t, err)
		require.Equal(t, "return_init_001", selected[0].ID)
		require.Equal(t, "order_status_001", selected[1].ID)
	})

	t.Run("unknown id fails", func(t *testing.T) {
		_, err := Filter(all, []string{"nope"})
		require.Error(t, err)
	})

	t.Run("no ids selects everything", func(t *testing.T) {
		selected, err := Filter(all, nil)
		require.NoError(t, err)
		require.Len(t, selected, len(all))
	})
}
