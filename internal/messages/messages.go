// Package messages holds the user-facing texts of the service in every
// supported language.
package messages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a message.
type Key string

const (
	NotFound           Key = "not_found"
	OutOfRange         Key = "out_of_range"
	EmptyGeneration    Key = "empty_generation"
	ProviderFailure    Key = "provider_failure"
	DuplicateOperation Key = "duplicate_operation"
	StaleArtifact      Key = "stale_artifact"
	InvalidArtifact    Key = "invalid_artifact"
	InvalidImage       Key = "invalid_image"
	EmptyMask          Key = "empty_mask"
	InvalidRequest     Key = "invalid_request"
	NoPool             Key = "no_pool"
	PayloadTooLarge    Key = "payload_too_large"
	RateLimited        Key = "rate_limited"
	Internal           Key = "internal"
	Restored           Key = "restored"
	NothingToRestore   Key = "nothing_to_restore"
	Cleaned            Key = "cleaned"
)

// Supported lists the available languages; the first is the fallback.
var Supported = []language.Tag{language.English, language.Vietnamese, language.Indonesian}

var texts = map[language.Tag]map[Key]string{
	language.English: {
		NotFound:           "The requested item was not found.",
		OutOfRange:         "That image is no longer in the list.",
		EmptyGeneration:    "The AI did not return an image. Please try again.",
		ProviderFailure:    "The image service is unavailable right now. Please try again.",
		DuplicateOperation: "This image is already being processed.",
		StaleArtifact:      "This image changed while you were editing. Please open it again.",
		InvalidArtifact:    "The stored image could not be read.",
		InvalidImage:       "The image could not be decoded.",
		EmptyMask:          "Paint over the area you want to remove first.",
		InvalidRequest:     "The request is invalid: %s",
		NoPool:             "There are no images to choose from yet.",
		PayloadTooLarge:    "The upload is larger than %s.",
		RateLimited:        "Too many requests. Please wait a moment.",
		Internal:           "Something went wrong.",
		Restored:           "The original image was restored.",
		NothingToRestore:   "There is nothing to undo for this image.",
		Cleaned:            "The image was cleaned.",
	},
	language.Vietnamese: {
		NotFound:           "Không tìm thấy mục được yêu cầu.",
		OutOfRange:         "Ảnh này không còn trong danh sách.",
		EmptyGeneration:    "AI không trả về ảnh nào. Vui lòng thử lại.",
		ProviderFailure:    "Dịch vụ xử lý ảnh hiện không khả dụng. Vui lòng thử lại.",
		DuplicateOperation: "Ảnh này đang được xử lý.",
		StaleArtifact:      "Ảnh đã thay đổi trong lúc bạn chỉnh sửa. Vui lòng mở lại.",
		InvalidArtifact:    "Không thể đọc ảnh đã lưu.",
		InvalidImage:       "Không thể giải mã ảnh.",
		EmptyMask:          "Hãy tô lên vùng cần xóa trước.",
		InvalidRequest:     "Yêu cầu không hợp lệ: %s",
		NoPool:             "Chưa có ảnh nào để chọn.",
		PayloadTooLarge:    "Tệp tải lên lớn hơn %s.",
		RateLimited:        "Quá nhiều yêu cầu. Vui lòng đợi một chút.",
		Internal:           "Đã xảy ra lỗi.",
		Restored:           "Đã khôi phục ảnh gốc.",
		NothingToRestore:   "Không có gì để hoàn tác cho ảnh này.",
		Cleaned:            "Đã làm sạch ảnh.",
	},
	language.Indonesian: {
		NotFound:           "Item yang diminta tidak ditemukan.",
		OutOfRange:         "Gambar itu sudah tidak ada di daftar.",
		EmptyGeneration:    "AI tidak mengembalikan gambar. Silakan coba lagi.",
		ProviderFailure:    "Layanan gambar sedang tidak tersedia. Silakan coba lagi.",
		DuplicateOperation: "Gambar ini sedang diproses.",
		StaleArtifact:      "Gambar berubah saat Anda mengedit. Silakan buka kembali.",
		InvalidArtifact:    "Gambar yang tersimpan tidak dapat dibaca.",
		InvalidImage:       "Gambar tidak dapat didekode.",
		EmptyMask:          "Warnai dulu area yang ingin dihapus.",
		InvalidRequest:     "Permintaan tidak valid: %s",
		NoPool:             "Belum ada gambar untuk dipilih.",
		PayloadTooLarge:    "Unggahan lebih besar dari %s.",
		RateLimited:        "Terlalu banyak permintaan. Mohon tunggu sebentar.",
		Internal:           "Terjadi kesalahan.",
		Restored:           "Gambar asli telah dipulihkan.",
		NothingToRestore:   "Tidak ada yang bisa dibatalkan untuk gambar ini.",
		Cleaned:            "Gambar telah dibersihkan.",
	},
}

var (
	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(Supported[0]))
	for tag, entries := range texts {
		for key, text := range entries {
			if err := b.SetString(tag, string(key), text); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Match returns the supported base language ("en", "vi", "id") closest to
// the given locales, which may be BCP 47 tags or Accept-Language values.
func Match(locales ...string) string {
	_, idx := language.MatchStrings(matcher, locales...)
	base, _ := Supported[idx].Base()
	return base.String()
}

// Localize renders key in the language closest to locale.
func Localize(locale string, key Key, args ...any) string {
	_, idx := language.MatchStrings(matcher, locale)
	p := message.NewPrinter(Supported[idx], message.Catalog(cat))
	return p.Sprintf(string(key), args...)
}
