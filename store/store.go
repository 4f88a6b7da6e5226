package store

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/harvest"
	"github.com/egaotan/solana-token2022/mint"
	"github.com/egaotan/solana-token2022/utils"
)

type Store struct {
	ctx      context.Context
	logger   *log.Logger
	mintChan chan *MintRecord
	runChan  chan *HarvestRun
	quit     chan struct{}
	wg       sync.WaitGroup
	dao      *Dao
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	logger := utils.NewLog(config.LogPath, config.StoreLog)
	dao, err := NewDao(dsn, logger)
	if err != nil {
		return nil, err
	}
	return NewStoreWithDao(ctx, dao, logger), nil
}

func NewStoreWithDao(ctx context.Context, dao *Dao, logger *log.Logger) *Store {
	if logger == nil {
		logger = utils.NewLog(config.LogPath, config.StoreLog)
	}
	return &Store{
		ctx:      ctx,
		logger:   logger,
		mintChan: make(chan *MintRecord, 32),
		runChan:  make(chan *HarvestRun, 32),
		quit:     make(chan struct{}),
		dao:      dao,
	}
}

func (s *Store) Start() {
	s.wg.Add(1)
	go s.store()
}

// Stop writes what is still queued and waits for the writer to exit.
func (s *Store) Stop() {
	close(s.quit)
	s.wg.Wait()
}

func (s *Store) store() {
	defer s.wg.Done()
	for {
		select {
		case record := <-s.mintChan:
			s.saveMint(record)
		case run := <-s.runChan:
			s.saveRun(run)
		case <-s.quit:
			s.drain()
			return
		case <-s.ctx.Done():
			s.drain()
			return
		}
	}
}

func (s *Store) drain() {
	for {
		select {
		case record := <-s.mintChan:
			s.saveMint(record)
		case run := <-s.runChan:
			s.saveRun(run)
		default:
			return
		}
	}
}

func (s *Store) saveMint(record *MintRecord) {
	if err := s.dao.SaveMint(record); err != nil {
		s.logger.Printf("save mint %s err: %s", record.Mint, err.Error())
	}
}

func (s *Store) saveRun(run *HarvestRun) {
	if err := s.dao.SaveHarvestRun(run); err != nil {
		s.logger.Printf("save harvest run %s err: %s", run.Id, err.Error())
	}
}

// RecordMint queues the created mint. The record is dropped when the queue is
// full.
func (s *Store) RecordMint(bp *mint.Blueprint, result *mint.Result) {
	record := mintRecord(bp, result)
	select {
	case s.mintChan <- record:
	default:
		s.logger.Printf("store queue full, drop mint %s", record.Mint)
	}
}

// RecordRun queues the finished run. The run is dropped when the queue is full.
func (s *Store) RecordRun(run *harvest.Run) {
	record := harvestRun(run)
	select {
	case s.runChan <- record:
	default:
		s.logger.Printf("store queue full, drop harvest run %s", record.Id)
	}
}

func (s *Store) GetMint(mint string) (*MintRecord, error) {
	return s.dao.SelectMint(mint)
}

func (s *Store) GetHarvestRun(id string) (*HarvestRun, error) {
	return s.dao.SelectHarvestRun(id)
}

func (s *Store) GetHarvestRunsByMint(mint string) ([]*HarvestRun, error) {
	return s.dao.SelectHarvestRunsByMint(mint)
}

func mintRecord(bp *mint.Blueprint, result *mint.Result) *MintRecord {
	extensions := make([]string, 0, len(bp.Extensions))
	for _, t := range bp.ExtensionTypes() {
		extensions = append(extensions, t.String())
	}
	record := &MintRecord{
		Mint:           result.Mint.String(),
		Name:           bp.Name,
		Symbol:         bp.Symbol,
		Decimals:       int(bp.Decimals),
		Owner:          bp.Owner.String(),
		MintAuthority:  bp.MintAuthority.String(),
		Extensions:     strings.Join(extensions, ","),
		FeeBasisPoints: int(bp.FeeBasisPoints()),
		Signature:      result.Signature.String(),
		Slot:           result.Slot,
		CreateTime:     time.Now().UnixMilli(),
	}
	if result.Plan != nil {
		record.Supply = strconv.FormatUint(result.Plan.RawSupply, 10)
		record.MintSpace = result.Plan.Size.MintSpace
		record.MetadataSpace = result.Plan.Size.MetadataSpace
		record.Rent = result.Plan.Rent
	}
	return record
}

func harvestRun(run *harvest.Run) *HarvestRun {
	report := run.Report()
	record := &HarvestRun{
		Id:          report.Id,
		Operation:   string(report.Operation),
		Mint:        report.Mint.String(),
		Destination: report.Destination.String(),
		Mode:        report.Mode,
		State:       string(report.State),
		Total:       report.Total,
		Err:         report.Err,
		StartTime:   report.Started.UnixMilli(),
	}
	if !report.Finished.IsZero() {
		record.FinishTime = report.Finished.UnixMilli()
	}
	for _, batch := range report.Batches {
		b := &HarvestBatch{
			HarvestRunId: report.Id,
			BatchIndex:   batch.Index,
			Sources:      len(batch.Sources),
			Done:         batch.Done,
			Err:          batch.Err,
		}
		if batch.Done {
			b.Signature = batch.Signature.String()
			b.Slot = batch.Slot
		}
		record.HarvestBatches = append(record.HarvestBatches, b)
	}
	return record
}
