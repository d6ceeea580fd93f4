/**
 * 本地单文档存储
 * @author: sun977
 * @date: 2026.10.14
 * @description: 以单个JSON文档保存本地状态，文件不存在时以 {} 初始化
 * @func: Open/Load/Save/Query/Put
 */
package localstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/pma-it-suite/daemon/internal/model/base"
)

const emptyDocument = "{}"

// Store 单文档JSON存储
// 同一进程内的读写由互斥锁串行化; 跨进程不加锁
type Store struct {
	path string
	mu   sync.Mutex
}

// New 创建存储句柄，不触碰文件系统
func New(path string) *Store {
	return &Store{path: path}
}

// Open 创建存储句柄，并在文件缺失时创建父目录与 {} 空文档
func Open(path string) (*Store, error) {
	s := New(path)
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path 存储文件路径
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return base.NewError(base.IoError, "create store directory", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return base.NewError(base.IoError, "stat store", err)
	}
	if err := os.WriteFile(s.path, []byte(emptyDocument), 0o600); err != nil {
		return base.NewError(base.IoError, "seed store", err)
	}
	return nil
}

// Load 将整个文档解码到 v
// 文件不存在或文档为空对象时返回 false
func (s *Store) Load(v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.read()
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, base.NewError(base.SerializationError, fmt.Sprintf("decode %s", s.path), err)
	}
	return true, nil
}

// Save 用 v 覆盖整个文档
func (s *Store) Save(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return base.NewError(base.SerializationError, "encode document", err)
	}
	return s.write(data)
}

// Query 读取顶层单个键
func (s *Store) Query(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readMap()
	if err != nil {
		return false, err
	}
	raw, ok := doc[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, base.NewError(base.SerializationError, fmt.Sprintf("decode key %s", key), err)
	}
	return true, nil
}

// Put 写入顶层单个键，保留其余键
func (s *Store) Put(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readMap()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return base.NewError(base.SerializationError, fmt.Sprintf("encode key %s", key), err)
	}
	doc[key] = raw

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return base.NewError(base.SerializationError, "encode document", err)
	}
	return s.write(data)
}

// read 读取原始文档，容忍注释与尾逗号
func (s *Store) read() ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, base.NewError(base.IoError, fmt.Sprintf("read %s", s.path), err)
	}
	data = bytes.TrimSpace(jsonc.ToJSON(data))
	if len(data) == 0 {
		return nil, false, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, base.NewError(base.SerializationError, fmt.Sprintf("decode %s", s.path), err)
	}
	if len(probe) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *Store) readMap() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, ok, err := s.read()
	if err != nil || !ok {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, base.NewError(base.SerializationError, fmt.Sprintf("decode %s", s.path), err)
	}
	return doc, nil
}

// write 截断后整体写入，非原子替换
func (s *Store) write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return base.NewError(base.IoError, "create store directory", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return base.NewError(base.IoError, fmt.Sprintf("open %s", s.path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return base.NewError(base.IoError, fmt.Sprintf("write %s", s.path), err)
	}
	if err := f.Close(); err != nil {
		return base.NewError(base.IoError, fmt.Sprintf("close %s", s.path), err)
	}
	return nil
}
