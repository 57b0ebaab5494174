package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ns-keys/internal/models"
)

// LatestKEKStateID 当前 KEK 状态的记录 ID
const LatestKEKStateID = "latest"

// LoadKEKState 读取当前 KEK 状态，不存在时返回 nil
func (s *Store) LoadKEKState(ctx context.Context) (*models.KEKState, error) {
	st := &models.KEKState{}
	err := s.DB.WithContext(ctx).Where("id = ?", LatestKEKStateID).First(st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Errorf("LoadKEKState: database error: %v", err)
		return nil, err
	}
	return st, nil
}

// LoadKEKStateByPK 读取某一代 KEK 的历史状态
func (s *Store) LoadKEKStateByPK(ctx context.Context, pk string) (*models.KEKState, error) {
	st := &models.KEKState{}
	err := s.DB.WithContext(ctx).Where("id = ?", pk).First(st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Errorf("LoadKEKStateByPK: database error for %s: %v", pk, err)
		return nil, err
	}
	return st, nil
}

// SaveKEKState 在同一事务中写入 latest 和 pk 两条记录
func (s *Store) SaveKEKState(ctx context.Context, st models.KEKState) error {
	log.Infof("SaveKEKState: saving kek state %s", st.PK)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveKEKState(tx, st)
	})
}

func saveKEKState(tx *gorm.DB, st models.KEKState) error {
	for _, id := range []string{LatestKEKStateID, st.PK} {
		row := st
		row.ID = id
		if err := tx.Save(&row).Error; err != nil {
			log.Errorf("SaveKEKState: failed to save row %s: %v", id, err)
			return err
		}
	}
	return nil
}

// LoadSeedEntries 按创建时间读取全部种子
func (s *Store) LoadSeedEntries(ctx context.Context) ([]models.SeedEntry, error) {
	var items []models.SeedEntry
	if err := s.DB.WithContext(ctx).Order("created_at, pk").Find(&items).Error; err != nil {
		log.Errorf("LoadSeedEntries: failed to query seed entries: %v", err)
		return nil, err
	}
	log.Debugf("LoadSeedEntries: found %d seed entries", len(items))
	return items, nil
}

// LoadSeed 按公钥读取种子，不存在时返回 nil
func (s *Store) LoadSeed(ctx context.Context, pk string) (*models.SeedEntry, error) {
	item := &models.SeedEntry{}
	err := s.DB.WithContext(ctx).Where("pk = ?", pk).First(item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Errorf("LoadSeed: database error for %s: %v", pk, err)
		return nil, err
	}
	return item, nil
}

// SaveSeed 新增或覆盖种子记录
func (s *Store) SaveSeed(ctx context.Context, e *models.SeedEntry) error {
	if err := s.DB.WithContext(ctx).Save(e).Error; err != nil {
		log.Errorf("SaveSeed: failed to save seed %s: %v", e.PK, err)
		return err
	}
	log.Infof("SaveSeed: saved seed %s", e.PK)
	return nil
}

// LoadSeedBackups 读取轮换前的种子快照
func (s *Store) LoadSeedBackups(ctx context.Context) ([]models.SeedEntryBK, error) {
	var items []models.SeedEntryBK
	if err := s.DB.WithContext(ctx).Order("created_at, pk").Find(&items).Error; err != nil {
		log.Errorf("LoadSeedBackups: failed to query backups: %v", err)
		return nil, err
	}
	return items, nil
}

// RotateKEK 在一个事务中写入备份、重新加密的种子和新的 KEK 状态
func (s *Store) RotateKEK(ctx context.Context, backups, resealed []models.SeedEntry, st models.KEKState) error {
	log.Infof("RotateKEK: rotating %d seeds to kek %s", len(resealed), st.PK)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range backups {
			bk := models.SeedEntryBK(backups[i])
			if err := tx.Save(&bk).Error; err != nil {
				log.Errorf("RotateKEK: failed to back up seed %s: %v", bk.PK, err)
				return err
			}
		}
		for i := range resealed {
			if err := tx.Save(&resealed[i]).Error; err != nil {
				log.Errorf("RotateKEK: failed to save seed %s: %v", resealed[i].PK, err)
				return err
			}
		}
		return saveKEKState(tx, st)
	})
	if err != nil {
		return err
	}
	log.Infof("RotateKEK: rotated to kek %s", st.PK)
	return nil
}
