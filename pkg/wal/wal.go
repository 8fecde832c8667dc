// Package wal 提供帶序號的 JSON Lines Write-Ahead Log。
//
// 每一行是一筆 {"seq":N,"data":...}，序號從 1 開始連續遞增。
// Append 回傳前一定已經 fsync；開檔時會掃過整份檔案，
// 截掉寫到一半的尾巴 (該筆從未回報成功)，中段損毀則回傳 *CorruptionError。
package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModePrivate rw-------，WAL 內含 credential hash，只給擁有者讀寫
const FileModePrivate fs.FileMode = 0600

var (
	// ErrCorrupted 檔案中段出現無法解析或序號不連續的紀錄
	ErrCorrupted = errors.New("wal: corrupted")
	// ErrClosed Log 已關閉
	ErrClosed = errors.New("wal: closed")
)

// CorruptionError 描述損毀的位置
type CorruptionError struct {
	Line   int
	Offset int64
	Err    error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("wal: corrupted entry at line %d (offset %d): %v", e.Line, e.Offset, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

func (e *CorruptionError) Is(target error) bool { return target == ErrCorrupted }

type entry struct {
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}

// Log 單一檔案的 append-only 日誌，可同時被多個 goroutine 使用
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	seq    uint64
	size   int64
	closed bool
}

// Open 開啟或建立 WAL 檔案，並驗證既有內容
//
// 參數:
//
//	path: 檔案路徑，不存在時以 FileModePrivate 建立
//
// 回傳:
//
//	*Log: 已定位到最後一筆序號的 Log
//	error: 開檔失敗，或檔案中段損毀 (errors.Is(err, ErrCorrupted))
func Open(path string) (*Log, error) {
	// O_APPEND 讓寫入永遠落在檔尾，Seek 只影響讀取
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	l := &Log{file: file, path: path}
	if err := l.scan(nil); err != nil {
		_ = file.Close()
		return nil, err
	}
	return l, nil
}

// Append 編碼 v 後追加一筆並 fsync
//
// 回傳:
//
//	uint64: 這筆紀錄的序號
//	error: 編碼或寫入失敗。寫入失敗時會把檔案截回寫入前的長度
func (l *Log) Append(v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}

	line, err := json.Marshal(entry{Seq: l.seq + 1, Data: data})
	if err != nil {
		return 0, err
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		l.rollback()
		return 0, err
	}
	if err := l.file.Sync(); err != nil {
		l.rollback()
		return 0, err
	}
	l.seq++
	l.size += int64(len(line))
	return l.seq, nil
}

// rollback 丟掉半寫入的資料，否則下一筆會接在壞掉的行後面
func (l *Log) rollback() {
	_ = l.file.Truncate(l.size)
}

// Replay 從頭依序把每一筆紀錄交給 fn，fn 回傳錯誤時立即停止
func (l *Log) Replay(fn func(seq uint64, data json.RawMessage) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return l.scan(fn)
}

// scan 呼叫端須持有 mu (或尚未對外公開)
func (l *Log) scan(fn func(seq uint64, data json.RawMessage) error) error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(l.file)

	var (
		offset int64
		seq    uint64
	)
	for lineNo := 1; ; lineNo++ {
		buf, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(buf) > 0 {
				if err := l.file.Truncate(offset); err != nil {
					return err
				}
			}
			break
		}
		if err != nil {
			return err
		}

		var e entry
		if err := json.Unmarshal(buf, &e); err != nil {
			return &CorruptionError{Line: lineNo, Offset: offset, Err: err}
		}
		if e.Seq != seq+1 {
			return &CorruptionError{Line: lineNo, Offset: offset, Err: fmt.Errorf("sequence %d follows %d", e.Seq, seq)}
		}
		seq = e.Seq
		offset += int64(len(buf))

		if fn != nil {
			if err := fn(e.Seq, e.Data); err != nil {
				return err
			}
		}
	}
	l.seq = seq
	l.size = offset
	return nil
}

// LastSeq 最後一筆成功寫入的序號，空檔案為 0
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Size 目前有效內容的位元組數
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *Log) Path() string { return l.path }

// Close 關閉檔案，重複呼叫回傳 ErrClosed
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	return l.file.Close()
}
