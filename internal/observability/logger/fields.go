package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP (ops server) ───

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ─── Negocio ───

// AccountID crea un campo para el ID de la cuenta.
func AccountID(v int64) zap.Field { return zap.Int64("account_id", v) }

// NoteID crea un campo para el ID de una nota.
func NoteID(v int64) zap.Field { return zap.Int64("note_id", v) }

// RunID identifica una corrida del purgador.
func RunID(v string) zap.Field { return zap.String("run_id", v) }

// Step crea un campo para el paso/estado de la purga.
func Step(v string) zap.Field { return zap.String("step", v) }

// BlobKey crea un campo para la clave de un objeto externo.
func BlobKey(v string) zap.Field { return zap.String("blob_key", v) }

// ─── Storage ───

// Pool crea un campo para el pool físico (primary/replica).
func Pool(v string) zap.Field { return zap.String("pool", v) }

// Intent crea un campo para la intención declarada de la unidad de trabajo.
func Intent(v string) zap.Field { return zap.String("intent", v) }

// Driver crea un campo para el driver del adapter.
func Driver(v string) zap.Field { return zap.String("driver", v) }

// ─── Sistema ───

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Count crea un campo para un conteo.
func Count(v int64) zap.Field { return zap.Int64("count", v) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Time crea un campo time genérico.
func Time(key string, v time.Time) zap.Field { return zap.Time(key, v) }
