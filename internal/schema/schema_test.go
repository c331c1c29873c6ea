package schema

import "testing"

func TestExecutionResult_RowCount(t *testing.T) {
	cases := []struct {
		name string
		rows [][]interface{}
		want int
	}{
		{"empty", nil, 0},
		{"single row", [][]interface{}{{"a", 1}}, 1},
		{"multiple rows", [][]interface{}{{1}, {2}, {3}}, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			result := ExecutionResult{Columns: []string{"c"}, Rows: tc.rows}

			// Act
			got := result.RowCount()

			// Assert
			if got != tc.want {
				t.Fatalf("RowCount() = %d, want %d", got, tc.want)
			}
		})
	}
}
