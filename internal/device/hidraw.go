package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bengfarrell/thelearningtablet/internal/consts"
	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

// Info はOSから報告されるhidrawデバイスの情報を表す構造体
type Info struct {
	Name           string
	Path           string
	VendorID       int
	ProductID      int
	DescriptorSize int
}

// ReportSource は生のHIDレポートを到着順にプッシュ配送するインターフェース
type ReportSource interface {
	// Info はデバイス情報を返す
	Info() Info
	// Start はレポートの読み取りを開始し、1件ごとにコールバックを呼ぶ
	Start(cb func(packet.RawPacket)) error
	// Close は読み取りを停止しデバイスを閉じる
	Close() error
}

type hidrawSource struct {
	file     *os.File
	info     Info
	stopChan chan struct{}
	mutex    sync.Mutex
	running  bool
}

// CreateReportSource は指定されたパスのhidrawデバイスを開く
func CreateReportSource(path string) (ReportSource, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("デバイスファイルを開くのに失敗しました: %w", err)
	}

	info, err := readInfo(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	info.Path = path

	return &hidrawSource{
		file:     f,
		info:     info,
		stopChan: make(chan struct{}),
	}, nil
}

func (s *hidrawSource) Info() Info {
	return s.info
}

// Start はゴルーチンでレポートを読み続け、到着順にコールバックへ渡す
// hidrawのreadは1回につきちょうど1レポートを返す
func (s *hidrawSource) Start(cb func(packet.RawPacket)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return fmt.Errorf("レポートの読み取りは既に開始されています")
	}
	s.running = true

	go func() {
		buf := make([]byte, 256)
		for {
			select {
			case <-s.stopChan:
				return
			default:
			}

			n, err := s.file.Read(buf)
			if err != nil {
				// 非ブロッキングモードのためデータなしはエラーになる
				time.Sleep(time.Millisecond)
				continue
			}
			if n == 0 {
				continue
			}
			cb(packet.RawPacket(buf[:n]).Clone())
		}
	}()
	return nil
}

func (s *hidrawSource) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
	return s.file.Close()
}

// readInfo はioctlでデバイス名・ベンダーID・製品ID・ディスクリプタサイズを取得する
func readInfo(f *os.File) (Info, error) {
	fd := f.Fd()

	// デバイス名の取得
	nameBuf := make([]byte, consts.DeviceNameMax)
	nameReq := uintptr(consts.HidIocGRawName | (len(nameBuf) << 16))
	if err := ioctl(fd, nameReq, unsafe.Pointer(&nameBuf[0])); err != nil {
		return Info{}, fmt.Errorf("デバイス名の取得に失敗しました: %w", err)
	}
	name := strings.TrimRight(string(nameBuf), "\x00")

	// バスタイプ・ベンダーID・製品IDの取得（struct hidraw_devinfo）
	var devInfo struct {
		Bustype uint32
		Vendor  int16
		Product int16
	}
	if err := ioctl(fd, consts.HidIocGRawInfo, unsafe.Pointer(&devInfo)); err != nil {
		return Info{}, fmt.Errorf("デバイス情報の取得に失敗しました: %w", err)
	}

	// レポートディスクリプタサイズの取得
	var descSize int32
	if err := ioctl(fd, consts.HidIocGRDescSize, unsafe.Pointer(&descSize)); err != nil {
		return Info{}, fmt.Errorf("ディスクリプタサイズの取得に失敗しました: %w", err)
	}

	return Info{
		Name:           name,
		VendorID:       int(uint16(devInfo.Vendor)),
		ProductID:      int(uint16(devInfo.Product)),
		DescriptorSize: int(descSize),
	}, nil
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ScanDevices は現在接続されているhidrawデバイスの一覧を返す
func ScanDevices(glob string) ([]Info, error) {
	if glob == "" {
		glob = filepath.Join(consts.DevDirectory, consts.HidRawPrefix+"*")
	}
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}

	var devices []Info
	for _, path := range paths {
		f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
		if err != nil {
			// 権限のないノードはスキップ
			continue
		}
		info, err := readInfo(f)
		_ = f.Close()
		if err != nil {
			continue
		}
		info.Path = path
		devices = append(devices, info)
	}
	return devices, nil
}
