package stclient

import (
	"encoding/json"
	"fmt"
)

type listRequest struct {
	Folder string `json:"folder"`
	Type   int    `json:"type"`
}

// FileEntry は一覧 API の1要素です。サーバーのバージョンによって
// 素の文字列か {"name": ...} オブジェクトのどちらかで返ってくるのだ。
type FileEntry struct {
	Name string `json:"name"`
}

// UnmarshalJSON は文字列とオブジェクトの両方の形式を受け付けます。
func (e *FileEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Name = s
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("一覧の要素を解釈できません: %s", string(data))
	}
	e.Name = obj.Name
	return nil
}
