package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於帳本日誌
	FileModePrivate fs.FileMode = 0600
)

var (
	// ErrCorrupt 日誌中間出現無法解析的紀錄
	ErrCorrupt = errors.New("wal: corrupt record")
	// ErrUnusable 寫入失敗後無法把檔案截回原大小，之後的寫入一律拒絕
	ErrUnusable = errors.New("wal: unusable after failed rollback")
)

// logFile 是 WAL 需要的檔案操作 (*os.File)
type logFile interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

// WAL 以 JSON Lines 格式追加寫入的日誌檔
//
// 每筆紀錄佔一行，以 '\n' 結尾才算寫入完成。
// 寫到一半就當機留下的殘缺尾行會在 ReadAll 時被截掉。
type WAL struct {
	path string
	file logFile
	mu   sync.Mutex
	// broken 非 nil 代表檔案尾端狀態未知
	broken error
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	return &WAL{path: path, file: file}, nil
}

// Path 日誌檔路徑
func (w *WAL) Path() string {
	return w.path
}

// Write 寫入一筆紀錄並刷入硬碟，回傳 nil 時即已持久化
//
// 寫檔或 fsync 失敗時把檔案截回寫入前的大小，失敗的紀錄不會在重啟後被重播，
// 也不會讓下一筆紀錄接在殘缺的行後面。
//
// 參數:
//
//	v: 任何可被 json.Marshal 的值
//
// 回傳:
//
//	error: 編碼、寫檔或 fsync 失敗；截回失敗時包裝 ErrUnusable
func (w *WAL) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return fmt.Errorf("%w: %v", ErrUnusable, w.broken)
	}

	size, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(data); err != nil {
		return w.rollback(size, err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(size, err)
	}
	return nil
}

// rollback 截掉這次寫入的位元組
func (w *WAL) rollback(size int64, cause error) error {
	if err := w.file.Truncate(size); err != nil {
		w.broken = err
		return fmt.Errorf("%w: %v (write: %v)", ErrUnusable, err, cause)
	}
	if _, err := w.file.Seek(size, io.SeekStart); err != nil {
		w.broken = err
		return fmt.Errorf("%w: %v (write: %v)", ErrUnusable, err, cause)
	}
	return cause
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 從頭依序讀出每一筆紀錄
//
// 參數:
//
//	callback: 接收每一行的原始 JSON；回傳錯誤會中止讀取
//
// 回傳:
//
//	error: 中間紀錄損毀時回傳包裝 ErrCorrupt 的錯誤
//
// 沒有換行結尾的最後一行視為寫入中斷，會被截掉而不回報錯誤，
// 之後的 Write 會接在最後一筆完整紀錄後面。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(w.file)
	var offset int64
	line := 0
	for {
		chunk, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(chunk) > 0 {
				return w.file.Truncate(offset)
			}
			return nil
		}
		if err != nil {
			return err
		}
		line++
		offset += int64(len(chunk))

		raw := bytes.TrimSpace(chunk)
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%w at line %d", ErrCorrupt, line)
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
}
