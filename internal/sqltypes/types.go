// Package sqltypes maps the MySQL column type names database/sql reports to the
// short uppercase semantic names the result normalizer attaches to every
// row column, and converts driver-scanned values into JSON-friendly Go
// values the way the teacher's Handler.convertDatabaseValue does.
package sqltypes

import (
	"database/sql"
	"fmt"
)

// fieldTypeNames mirrors the MySQL protocol's numeric field type codes
// (the ones go-sql-driver/mysql surfaces via fieldType on a *mysql.mysqlField,
// here re-derived from the textual DatabaseTypeName() the stdlib exposes,
// since database/sql hides the raw wire code from callers). Kept as a
// table, not a switch, so unknown codes fall through uniformly.
var fieldTypeNames = map[string]string{
	"TINYINT":    "INT",
	"SMALLINT":   "INT",
	"MEDIUMINT":  "INT",
	"INT":        "INT",
	"INTEGER":    "INT",
	"BIGINT":     "BIGINT",
	"DECIMAL":    "DECIMAL",
	"NUMERIC":    "DECIMAL",
	"FLOAT":      "FLOAT",
	"DOUBLE":     "DOUBLE",
	"REAL":       "DOUBLE",
	"VARCHAR":    "VARCHAR",
	"CHAR":       "CHAR",
	"TEXT":       "TEXT",
	"TINYTEXT":   "TEXT",
	"MEDIUMTEXT": "TEXT",
	"LONGTEXT":   "TEXT",
	"JSON":       "JSON",
	"GEOMETRY":   "GEOMETRY",
	"DATE":       "DATE",
	"DATETIME":   "DATETIME",
	"TIMESTAMP":  "TIMESTAMP",
	"TIME":       "TIME",
	"YEAR":       "YEAR",
	"BLOB":       "BLOB",
	"TINYBLOB":   "BLOB",
	"MEDIUMBLOB": "BLOB",
	"LONGBLOB":   "BLOB",
	"BIT":        "BIT",
	"BOOLEAN":    "BOOLEAN",
	"BOOL":       "BOOLEAN",
	"ENUM":       "ENUM",
	"SET":        "SET",
}

// SemanticName returns the short uppercase semantic name for a column's
// driver-reported database type name. Unknown names render as
// UNKNOWN(<name>) — the driver here never surfaces raw numeric codes to
// callers, so the "never surface a raw numeric code" invariant is met by
// carrying the driver's own type name through instead of a bare number.
func SemanticName(databaseTypeName string) string {
	if name, ok := fieldTypeNames[databaseTypeName]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%s)", databaseTypeName)
}

// ConvertValue converts a raw value scanned from a *sql.Rows into a
// JSON-serializable Go value, using the column's reported type to decide
// how to render byte slices. Numeric and decimal types are returned as
// strings to preserve precision, exactly as the teacher does.
func ConvertValue(val interface{}, colType *sql.ColumnType) interface{} {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case []byte:
		dbType := colType.DatabaseTypeName()
		switch dbType {
		case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT":
			str := string(v)
			if str == "" {
				return 0
			}
			return str
		case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
			return string(v)
		default:
			return string(v)
		}
	case string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, bool:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
