package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// logRefKeys are detail keys copied onto error logs so a failed request can
// be traced to the order, payment or shipment it touched.
var logRefKeys = []string{"order_id", "payment_id", "shipping_rate_id", "tracking_number", "product_id", "review_id"}

// DBErrorDump is the driver-level detail of a database failure.
type DBErrorDump struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	TopMessage string         `json:"top_message"`
	Code       Code           `json:"code,omitempty"`
	Chain      []string       `json:"chain,omitempty"`
	Refs       map[string]any `json:"refs,omitempty"`
	DB         *DBErrorDump   `json:"db,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		if details, ok := te.Details().(map[string]any); ok {
			for _, key := range logRefKeys {
				if v, ok := details[key]; ok {
					if d.Refs == nil {
						d.Refs = map[string]any{}
					}
					d.Refs[key] = v
				}
			}
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.DB = dumpDB(err)
	return d
}

func dumpDB(err error) *DBErrorDump {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBErrorDump{
			Driver:     "pgx",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBErrorDump{
			Driver:     "pq",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}

	// SQLite backs the test database and only reports constraints in text,
	// e.g. "UNIQUE constraint failed: carts.email".
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		idx := strings.Index(msg, " constraint failed: ")
		if idx < 0 {
			continue
		}
		kind := strings.ToLower(msg[strings.LastIndex(msg[:idx], " ")+1 : idx])
		target := strings.TrimSpace(msg[idx+len(" constraint failed: "):])
		if comma := strings.Index(target, ","); comma >= 0 {
			target = target[:comma]
		}
		dump := &DBErrorDump{Driver: "sqlite", Constraint: kind, Message: msg}
		if table, column, ok := strings.Cut(target, "."); ok {
			dump.Table, dump.Column = table, column
		}
		return dump
	}
	return nil
}

// Fields renders the dump as log fields, leaving out empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	for key, value := range d.Refs {
		fields[key] = value
	}
	if d.DB != nil {
		fields["db_driver"] = d.DB.Driver
		for key, value := range map[string]string{
			"db_code":       d.DB.Code,
			"db_constraint": d.DB.Constraint,
			"db_table":      d.DB.Table,
			"db_column":     d.DB.Column,
			"db_detail":     d.DB.Detail,
			"db_message":    d.DB.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
