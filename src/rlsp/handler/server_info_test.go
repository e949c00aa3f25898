package handler

import (
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uber/rlsp/src/rlsp/internal/jsonrpcfx"
	"github.com/uber/rlsp/src/rlsp/internal/jsonrpcfx/jsonrpcfxmock"
	"github.com/uber/rlsp/src/rlsp/internal/serverinfofile/serverinfofilemock"
	"go.uber.org/mock/gomock"
)

func TestOutputServerInfo(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(infofile *serverinfofilemock.MockServerInfoFile)
		wantErr    bool
	}{
		{
			name: "pid and mode",
			setupMocks: func(infofile *serverinfofilemock.MockServerInfoFile) {
				gomock.InOrder(
					infofile.EXPECT().UpdateField(_infoKeyPID, strconv.Itoa(os.Getpid())).Return(nil),
					infofile.EXPECT().UpdateField(_infoKeyMode, "stdio").Return(nil),
				)
			},
		},
		{
			name: "file update error",
			setupMocks: func(infofile *serverinfofilemock.MockServerInfoFile) {
				infofile.EXPECT().UpdateField(_infoKeyPID, gomock.Any()).Return(errors.New("read only"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			jsonrpcmod := jsonrpcfxmock.NewMockJSONRPCModule(ctrl)
			jsonrpcmod.EXPECT().Mode().Return(jsonrpcfx.ModeStdio).AnyTimes()
			infofile := serverinfofilemock.NewMockServerInfoFile(ctrl)
			tt.setupMocks(infofile)

			err := outputServerInfo(jsonrpcmod, infofile)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
