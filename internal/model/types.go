package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/lib/pq"
)

// StringList stores a []string as a Postgres text[] column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*l = StringList(arr)
	return nil
}
