package store

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Dao struct {
	db *gorm.DB
}

func NewDao(dsn string, writer *log.Logger) (*Dao, error) {
	return NewDaoWithDialector(mysql.Open(dsn), writer)
}

// NewDaoWithDialector opens the database behind dialector and migrates the
// tables.
func NewDaoWithDialector(dialector gorm.Dialector, writer *log.Logger) (*Dao, error) {
	Logger := logger.Default
	if writer != nil {
		Logger = logger.New(writer, logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
		})
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: Logger})
	if err != nil {
		return nil, err
	}
	err = db.AutoMigrate(&MintRecord{}, &HarvestRun{}, &HarvestBatch{})
	if err != nil {
		return nil, err
	}
	return &Dao{db: db}, nil
}

func (dao *Dao) SaveMint(record *MintRecord) error {
	return dao.db.Create(record).Error
}

// SaveHarvestRun writes the run and its batches, replacing an earlier copy.
func (dao *Dao) SaveHarvestRun(run *HarvestRun) error {
	return dao.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("harvest_run_id = ?", run.Id).Delete(&HarvestBatch{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", run.Id).Delete(&HarvestRun{}).Error; err != nil {
			return err
		}
		return tx.Create(run).Error
	})
}

func (dao *Dao) SelectMint(mint string) (*MintRecord, error) {
	record := &MintRecord{}
	res := dao.db.Where("mint = ?", mint).First(record)
	return record, res.Error
}

func (dao *Dao) SelectHarvestRun(id string) (*HarvestRun, error) {
	run := &HarvestRun{}
	res := dao.db.Where("id = ?", id).Preload("HarvestBatches", func(db *gorm.DB) *gorm.DB {
		return db.Order("batch_index")
	}).First(run)
	return run, res.Error
}

func (dao *Dao) SelectHarvestRunsByMint(mint string) ([]*HarvestRun, error) {
	runs := make([]*HarvestRun, 0)
	res := dao.db.Where("mint = ?", mint).Order("start_time").Find(&runs)
	return runs, res.Error
}
