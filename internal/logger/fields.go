package logger

import (
	"time"

	"go.uber.org/zap"
)

func String(key, val string) Field                 { return zap.String(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Any(key string, val any) Field                { return zap.Any(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }

// Error attaches err under the "error" key.
func Error(err error) Field { return zap.Error(err) }

// Domain keys, kept consistent so log queries can join on them.

func EntryID(id string) Field      { return zap.String("entry_id", id) }
func SubmissionID(id string) Field { return zap.String("submission_id", id) }
func JobID(id string) Field        { return zap.String("job_id", id) }
func ChannelID(id string) Field    { return zap.String("channel_id", id) }
func Backend(kind string) Field    { return zap.String("backend", kind) }
