package store

type MintRecord struct {
	Mint           string `gorm:"primaryKey;type:varchar(48);not null" json:"mint"`
	Name           string `gorm:"type:varchar(64);not null" json:"name"`
	Symbol         string `gorm:"type:varchar(32);not null" json:"symbol"`
	Decimals       int    `gorm:"type:int;not null" json:"decimals"`
	Supply         string `gorm:"type:varchar(32);not null" json:"supply"`
	Owner          string `gorm:"type:varchar(48);not null" json:"owner"`
	MintAuthority  string `gorm:"type:varchar(48);not null" json:"mint_authority"`
	Extensions     string `gorm:"type:varchar(512);not null" json:"extensions"`
	FeeBasisPoints int    `gorm:"type:int;not null" json:"fee_basis_points"`
	MintSpace      int    `gorm:"type:int;not null" json:"mint_space"`
	MetadataSpace  int    `gorm:"type:int;not null" json:"metadata_space"`
	Rent           uint64 `gorm:"type:bigint(20);not null" json:"rent"`
	Signature      string `gorm:"type:varchar(120);not null" json:"signature"`
	Slot           uint64 `gorm:"type:bigint(20);not null" json:"slot"`
	CreateTime     int64  `gorm:"type:bigint(20);not null" json:"create_time"`
}

type HarvestBatch struct {
	HarvestRunId string `gorm:"primaryKey;type:varchar(36);not null" json:"harvest_run_id"`
	BatchIndex   int    `gorm:"primaryKey;type:int;not null" json:"batch_index"`
	Sources      int    `gorm:"type:int;not null" json:"sources"`
	Signature    string `gorm:"type:varchar(120);not null" json:"signature"`
	Slot         uint64 `gorm:"type:bigint(20);not null" json:"slot"`
	Done         bool   `gorm:"not null" json:"done"`
	Err          string `gorm:"type:varchar(512);not null" json:"err"`
}

type HarvestRun struct {
	Id             string          `gorm:"primaryKey;type:varchar(36);not null" json:"id"`
	Operation      string          `gorm:"type:varchar(32);not null" json:"operation"`
	Mint           string          `gorm:"type:varchar(48);not null;index" json:"mint"`
	Destination    string          `gorm:"type:varchar(48);not null" json:"destination"`
	Mode           string          `gorm:"type:varchar(16);not null" json:"mode"`
	State          string          `gorm:"type:varchar(32);not null" json:"state"`
	Total          int             `gorm:"type:int;not null" json:"total"`
	Err            string          `gorm:"type:varchar(512);not null" json:"err"`
	StartTime      int64           `gorm:"type:bigint(20);not null" json:"start_time"`
	FinishTime     int64           `gorm:"type:bigint(20);not null" json:"finish_time"`
	HarvestBatches []*HarvestBatch `gorm:"foreignKey:HarvestRunId;references:Id" json:"harvest_batches"`
}
