package handler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"deafbot/internal/domain"
	"deafbot/internal/transport"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	adminStats     = "stats"
	adminExport    = "export"
	adminBroadcast = "broadcast"
)

func (h *Handler) isAdminCommand(cmd string) bool {
	switch cmd {
	case adminStats, adminExport, adminBroadcast:
		return true
	}
	return false
}

// handleAdminCommand serves /stats, /export and /broadcast. Anyone else
// trying them is logged and reported to the admin.
func (h *Handler) handleAdminCommand(ctx context.Context, ev Event) {
	if h.cfg.AdminID == 0 || int64(ev.UserID) != h.cfg.AdminID {
		h.logger.Warn("SomeOne is trying to get admin root", zap.Int64("user_id", int64(ev.UserID)))
		if h.cfg.AdminID != 0 {
			h.send(ctx, h.cfg.AdminID,
				fmt.Sprintf("Someone is trying to use admin commands, user_id: %d (@%s)", ev.UserID, ev.Username),
				transport.SendOptions{})
		}
		return
	}

	switch ev.Command {
	case adminStats:
		h.sendStats(ctx, ev.ChatID)
	case adminExport:
		h.exportProfiles(ctx, ev.ChatID)
	case adminBroadcast:
		h.broadcast(ctx, ev.ChatID, ev.Args)
	}
}

func (h *Handler) sendStats(ctx context.Context, chatID int64) {
	s, err := h.likeRepo.Stats(ctx)
	if err != nil {
		h.logger.Error("Failed to collect stats", zap.Error(err))
		h.send(ctx, chatID, "❌ Не удалось собрать статистику", transport.SendOptions{})
		return
	}
	text := fmt.Sprintf(`📊 СТАТИСТИКА

👥 Пользователи: %d
⭐ Анкеты: %d
❤️ Ожидающие лайки: %d
👀 Просмотры: %d`, s.Users, s.Profiles, s.Likes, s.Views)
	h.send(ctx, chatID, text, transport.SendOptions{})
}

var exportHeader = []interface{}{
	"ID", "Имя", "Возраст", "Пол", "Уровень слуха", "Город", "Город (геокодер)", "Описание", "Фото", "Видна",
}

func (h *Handler) exportProfiles(ctx context.Context, chatID int64) {
	profiles, err := h.profileRepo.GetAllProfiles(ctx)
	if err != nil {
		h.logger.Error("Failed to load profiles for export", zap.Error(err))
		h.send(ctx, chatID, "❌ Не удалось выгрузить анкеты", transport.SendOptions{})
		return
	}

	buf, err := buildProfilesWorkbook(profiles)
	if err != nil {
		h.logger.Error("Failed to build Excel file", zap.Error(err))
		h.send(ctx, chatID, "❌ Не удалось собрать Excel файл", transport.SendOptions{})
		return
	}

	filename := fmt.Sprintf("profiles_%s.xlsx", time.Now().Format("20060102_150405"))
	caption := fmt.Sprintf("📋 Анкет: %d", len(profiles))
	if err := h.tr.SendDocument(ctx, chatID, filename, buf, caption); err != nil {
		h.logger.Error("Failed to send Excel file", zap.Error(err), zap.String("file", filename))
		h.send(ctx, chatID, "❌ Не удалось отправить Excel файл", transport.SendOptions{})
		return
	}
	h.logger.Info("Excel file sent successfully", zap.String("file", filename), zap.Int("rows", len(profiles)))
}

func buildProfilesWorkbook(profiles []domain.Profile) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Profiles"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, p := range profiles {
		desc := ""
		if p.Description != nil {
			desc = *p.Description
		}
		row := []interface{}{
			int64(p.ID),
			p.Name,
			p.Age,
			string(p.Sex),
			p.HearingLevel.Label(p.Sex),
			p.Location.Displayed,
			p.Location.Actual,
			desc,
			len(p.Photos),
			p.Settings.Visible,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

// broadcast sends text to every user with a profile, paced by the shared
// limiter, and edits a status message with the totals at the end.
func (h *Handler) broadcast(ctx context.Context, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.send(ctx, chatID, "Использование: /broadcast <текст>", transport.SendOptions{})
		return
	}

	userIDs, err := h.userRepo.GetAllUserIDs(ctx)
	if err != nil {
		h.logger.Error("Failed to load user ids", zap.Error(err))
		h.send(ctx, chatID, fmt.Sprintf("❌ Не удалось получить список пользователей\n%s", err.Error()), transport.SendOptions{})
		return
	}
	if len(userIDs) == 0 {
		h.send(ctx, chatID, "📭 Нет пользователей для рассылки", transport.SendOptions{})
		return
	}

	statusMsg, ok := h.send(ctx, chatID,
		fmt.Sprintf("📤 Рассылка идёт...\n👥 Всего: %d", len(userIDs)),
		transport.SendOptions{})
	if !ok {
		return
	}

	var wg sync.WaitGroup
	var successCount, failedCount int64
	for _, id := range userIDs {
		if err := h.limiter.Wait(ctx); err != nil {
			h.logger.Error("Rate limiter wait error", zap.Error(err))
			break
		}
		wg.Add(1)
		go func(userID domain.UserID) {
			defer wg.Done()
			if _, err := h.tr.SendText(ctx, int64(userID), text, transport.SendOptions{}); err != nil {
				atomic.AddInt64(&failedCount, 1)
				h.logger.Warn("Failed to send message to user", zap.Int64("user", int64(userID)), zap.Error(err))
				return
			}
			atomic.AddInt64(&successCount, 1)
		}(id)
	}
	wg.Wait()

	finalSuccess := atomic.LoadInt64(&successCount)
	finalFailed := atomic.LoadInt64(&failedCount)
	successRate := float64(finalSuccess) / float64(len(userIDs)) * 100

	finalText := fmt.Sprintf(`✅ РАССЫЛКА ЗАВЕРШЕНА

👥 Всего: %d
✅ Успешно: %d
❌ Ошибки: %d
📊 Доставлено: %.1f%%
⏰ Время: %s`,
		len(userIDs),
		finalSuccess,
		finalFailed,
		successRate,
		time.Now().Format("2006-01-02 15:04:05"))

	if err := h.tr.EditText(ctx, statusMsg, finalText, transport.SendOptions{}); err != nil {
		h.logger.Error("Failed to edit broadcast status", zap.Error(err))
	}

	h.logger.Info("Broadcast completed",
		zap.Int("total", len(userIDs)),
		zap.Int64("success", finalSuccess),
		zap.Int64("failed", finalFailed),
		zap.Float64("success_rate", successRate))
}
