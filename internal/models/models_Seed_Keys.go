package models

// KeyPath 派生路径记录，只追加不删除
type KeyPath struct {
	Alias      string `json:"alias"`
	Path       string `json:"path"`
	Address    string `json:"address"`
	CreatedAt  int64  `json:"created_at"` // unix 毫秒
	Deprecated bool   `json:"deprecated"`
}

// SeedEntry 加密保存的种子
// Seed 为 COSE_Encrypt0 密文，由 KekPK 对应的 KEK 加密
type SeedEntry struct {
	PK        string    `gorm:"column:pk;primaryKey;size:64" json:"pk"`
	KekPK     string    `gorm:"column:kek_pk;size:64" json:"kek_pk"`
	CreatedAt int64     `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt int64     `gorm:"autoUpdateTime:false" json:"updated_at"`
	SyncedAt  int64     `json:"synced_at"` // 0 表示从未同步
	Alias     string    `gorm:"size:128;index" json:"alias"`
	Seed      []byte    `gorm:"type:blob" json:"-"`
	NsPaths   []KeyPath `gorm:"serializer:json" json:"ns_paths"`
	BtcPaths  []KeyPath `gorm:"serializer:json" json:"btc_paths"`
}

func (SeedEntry) TableName() string { return "seed_entries" }

// SeedEntryBK 轮换 KEK 前的种子快照
type SeedEntryBK SeedEntry

func (SeedEntryBK) TableName() string { return "seed_entry_bks" }

// KEKState 当前 KEK 代际
// ID 为 "latest" 或 KEK 公钥
type KEKState struct {
	ID           string `gorm:"primaryKey;size:64" json:"-"`
	PK           string `gorm:"column:pk;size:64" json:"pk"`
	CreatedAt    int64  `gorm:"autoCreateTime:false;index" json:"created_at"`
	SyncedAt     int64  `json:"synced_at"`
	WithPassword bool   `json:"with_password"`
	State        []byte `gorm:"type:blob" json:"state"`
	Sig          []byte `gorm:"type:blob" json:"sig"`
}

func (KEKState) TableName() string { return "kek_states" }

// COSEKeyEntry 预留：非种子类 COSE 密钥
type COSEKeyEntry struct {
	PK        string `gorm:"column:pk;primaryKey;size:64" json:"pk"`
	KekPK     string `gorm:"column:kek_pk;size:64" json:"kek_pk"`
	CreatedAt int64  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt int64  `gorm:"autoUpdateTime:false" json:"updated_at"`
	SyncedAt  int64  `json:"synced_at"`
	Alias     string `gorm:"size:128;index" json:"alias"`
	Disc      string `json:"disc"`
	Cose      []byte `gorm:"type:blob" json:"-"`
}

func (COSEKeyEntry) TableName() string { return "cose_key_entries" }

type COSEKeyEntryBK COSEKeyEntry

func (COSEKeyEntryBK) TableName() string { return "cose_key_entry_bks" }
